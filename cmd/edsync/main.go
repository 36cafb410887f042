// Package main provides the sync CLI for course discussion indexing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/studyloop/edsync/internal/config"
	"github.com/studyloop/edsync/internal/edapi"
	"github.com/studyloop/edsync/internal/embedding"
	"github.com/studyloop/edsync/internal/extract"
	"github.com/studyloop/edsync/internal/orchestrator"
	"github.com/studyloop/edsync/internal/syncstate"
	"github.com/studyloop/edsync/internal/vectorstore"
)

var (
	flagDelta      bool
	flagForce      bool
	flagName       string
	flagCode       string
	flagDays       int
	flagHours      int
	flagTopK       int
	flagThreadOnly bool
)

var rootCmd = &cobra.Command{
	Use:   "edsync",
	Short: "Course discussion sync tool",
	Long: `CLI for syncing course discussion threads into the vector index.

Environment variables:
  EDSYNC_API_URL    Discussion API base URL
  EDSYNC_API_TOKEN  Discussion API bearer token (required)
  QDRANT_HOST       Qdrant hostname (default: localhost)
  QDRANT_PORT       Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY    OpenAI API key for embeddings (required)
  EDSYNC_DATA_DIR   Sync state database directory (default: ~/.edsync/data)`,
}

var syncCmd = &cobra.Command{
	Use:   "sync <course-id>",
	Short: "Sync one course into the vector index",
	Args:  cobra.ExactArgs(1),
	RunE:  runSync,
}

var syncAllCmd = &cobra.Command{
	Use:   "sync-all",
	Short: "Sync every active enrolled course",
	RunE:  runSyncAll,
}

var resyncCmd = &cobra.Command{
	Use:   "resync <course-id>",
	Short: "Delete a course's vectors and rebuild from scratch",
	Args:  cobra.ExactArgs(1),
	RunE:  runResync,
}

var statusCmd = &cobra.Command{
	Use:   "status [course-id]",
	Short: "Show sync states",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old completed and failed sync records",
	RunE:  runCleanup,
}

var resetStuckCmd = &cobra.Command{
	Use:   "reset-stuck",
	Short: "Fail any sync stuck in syncing past the threshold",
	RunE:  runResetStuck,
}

var searchCmd = &cobra.Command{
	Use:   "search <course-id> <query>",
	Short: "Search a course's synced discussion content",
	Args:  cobra.ExactArgs(2),
	RunE:  runSearch,
}

var statsCmd = &cobra.Command{
	Use:   "stats <course-id>",
	Short: "Show indexed document counts for a course",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

var deleteThreadCmd = &cobra.Command{
	Use:   "delete-thread <course-id> <thread-id>",
	Short: "Remove one thread's documents from the index",
	Args:  cobra.ExactArgs(2),
	RunE:  runDeleteThread,
}

func init() {
	syncCmd.Flags().BoolVar(&flagDelta, "delta", false, "only sync threads updated since the last successful sync")
	syncCmd.Flags().StringVar(&flagName, "name", "", "course name recorded in the sync state")
	syncCmd.Flags().StringVar(&flagCode, "code", "", "course code recorded in the sync state")
	syncAllCmd.Flags().BoolVar(&flagDelta, "delta", false, "delta sync each course")
	syncAllCmd.Flags().BoolVar(&flagForce, "force", false, "force full resync of each course")
	cleanupCmd.Flags().IntVar(&flagDays, "older-than-days", 30, "delete records older than this many days")
	resetStuckCmd.Flags().IntVar(&flagHours, "max-hours", 2, "syncing states older than this are failed")
	searchCmd.Flags().IntVar(&flagTopK, "top-k", 5, "number of results")
	searchCmd.Flags().BoolVar(&flagThreadOnly, "threads-only", false, "restrict results to thread documents")

	rootCmd.AddCommand(syncCmd, syncAllCmd, resyncCmd, statusCmd, cleanupCmd, resetStuckCmd, searchCmd, statsCmd, deleteThreadCmd)
}

func main() {
	// Load .env if present (local development), ignore if missing.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired components shared by all subcommands.
type app struct {
	cfg    config.Config
	api    *edapi.Client
	index  *vectorstore.Index
	states *syncstate.Store
	orch   *orchestrator.Orchestrator
}

func newApp() (*app, error) {
	cfg := config.Load()
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("EDSYNC_API_TOKEN not set")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	api := edapi.NewClient(cfg.APIBaseURL, edapi.StaticToken(cfg.APIToken))

	embeddingClient, err := embedding.NewClient(cfg.OpenAIAPIKey)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}
	embedder := embedding.NewEmbedder(embeddingClient, 0)

	index, err := vectorstore.NewIndex(cfg.QdrantHost, cfg.QdrantPort, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to vector store: %w", err)
	}

	states, err := syncstate.NewStore(cfg.DataDir)
	if err != nil {
		index.Close()
		return nil, fmt.Errorf("open sync state store: %w", err)
	}

	return &app{
		cfg:    cfg,
		api:    api,
		index:  index,
		states: states,
		orch:   orchestrator.New(api, index, states, logger),
	}, nil
}

func (a *app) close() {
	a.states.Close()
	a.index.Close()
}

func parseCourseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid course id %q", arg)
	}
	return id, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	courseID, err := parseCourseID(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	syncType := syncstate.TypeFull
	if flagDelta {
		syncType = syncstate.TypeDelta
	}

	ref := orchestrator.CourseRef{ID: courseID, Name: flagName, Code: flagCode}
	report, err := a.orch.StartCourseSync(context.Background(), ref, syncType, false)
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

func runSyncAll(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	syncType := syncstate.TypeFull
	if flagDelta {
		syncType = syncstate.TypeDelta
	}

	reports, err := a.orch.SyncAllActiveCourses(context.Background(), syncType, flagForce)
	if err != nil {
		return err
	}

	fmt.Printf("Synced %d courses\n", len(reports))
	for _, report := range reports {
		printReport(report)
	}
	return nil
}

func runResync(cmd *cobra.Command, args []string) error {
	courseID, err := parseCourseID(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.orch.ForceFullResync(context.Background(), orchestrator.CourseRef{ID: courseID})
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	var states []syncstate.State
	if len(args) == 1 {
		courseID, err := parseCourseID(args[0])
		if err != nil {
			return err
		}
		state, err := a.orch.CourseSyncState(ctx, courseID)
		if err != nil {
			return err
		}
		if state == nil {
			fmt.Printf("No sync state for course %d\n", courseID)
			return nil
		}
		states = []syncstate.State{*state}
	} else {
		states, err = a.orch.AllSyncStates(ctx)
		if err != nil {
			return err
		}
	}

	for _, state := range states {
		fmt.Printf("course %d [%s] %s/%s synced %d/%d",
			state.CourseID, state.CourseCode, state.Status, state.SyncType,
			state.SyncedThreads, state.TotalThreads)
		if state.LastSuccessfulSyncAt != nil {
			fmt.Printf(" last success %s", state.LastSuccessfulSyncAt.Format(time.RFC3339))
		}
		if state.ErrorMessage != "" {
			fmt.Printf(" errors: %s", state.ErrorMessage)
		}
		fmt.Println()
	}
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	removed, err := a.orch.CleanupCompletedSyncs(context.Background(), time.Duration(flagDays)*24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d old sync records\n", removed)
	return nil
}

func runResetStuck(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	reset, err := a.orch.ResetStuckSyncs(context.Background(), time.Duration(flagHours)*time.Hour)
	if err != nil {
		return err
	}
	fmt.Printf("Reset %d stuck syncs\n", reset)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	courseID, err := parseCourseID(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	opts := vectorstore.SearchOptions{TopK: flagTopK}
	if flagThreadOnly {
		opts.Type = extract.TypeThread
	}

	results, err := a.index.Search(context.Background(), args[1], courseID, opts)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No matches")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%.3f  %-8s thread %d  %s\n", r.Score, r.Type, r.ThreadID, r.PreviewText)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	courseID, err := parseCourseID(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	stats := a.index.CourseStats(context.Background(), courseID)
	fmt.Printf("Course %d: %d documents (%d threads, %d answers, %d comments)\n",
		courseID, stats.Total, stats.ThreadCount, stats.AnswerCount, stats.CommentCount)
	return nil
}

func runDeleteThread(cmd *cobra.Command, args []string) error {
	courseID, err := parseCourseID(args[0])
	if err != nil {
		return err
	}
	threadID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || threadID <= 0 {
		return fmt.Errorf("invalid thread id %q", args[1])
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	deleted, err := a.index.DeleteThread(context.Background(), courseID, threadID)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d documents for thread %d\n", deleted, threadID)
	return nil
}

func printReport(report *orchestrator.Report) {
	fmt.Printf("Course %d: %s sync complete\n", report.CourseID, report.SyncType)
	fmt.Printf("  Threads: %d/%d\n", report.SyncedThreads, report.TotalThreads)
	fmt.Printf("  Documents: %d upserted %d\n", report.Documents, report.Upserted)
	fmt.Printf("  Duration: %s\n", report.Duration.Round(time.Second))
	if len(report.FailedThreads) > 0 {
		fmt.Printf("  Failed threads: %v\n", report.FailedThreads)
	}
	for _, msg := range report.Errors {
		fmt.Printf("  - %s\n", msg)
	}
}
