// Package orchestrator drives full and delta sync workflows, enforcing
// bounded concurrency and persisting the per-course sync state machine.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/edsync/internal/edapi"
	"github.com/studyloop/edsync/internal/retry"
	"github.com/studyloop/edsync/internal/syncstate"
	"github.com/studyloop/edsync/internal/vectorstore"
)

const (
	// FullConcurrency bounds detail fetches during a full sync.
	FullConcurrency = 50
	// DeltaConcurrency is smaller since delta volumes are expected smaller.
	DeltaConcurrency = 30

	// DefaultLookback anchors a delta sync with no prior success.
	DefaultLookback = 7 * 24 * time.Hour

	// DefaultStuckThreshold is how long a sync may sit in "syncing" before
	// the sweep flips it to failed.
	DefaultStuckThreshold = 2 * time.Hour

	// DefaultCleanupAge is how old a completed/failed record must be
	// before cleanup removes it.
	DefaultCleanupAge = 30 * 24 * time.Hour

	healthTimeout = 10 * time.Second
)

// ErrSyncInProgress is returned when a sync is requested for a course whose
// state is already syncing.
var ErrSyncInProgress = errors.New("sync already in progress for course")

// API is the slice of the discussion client the orchestrator uses. The
// token is bound into the client by its injected TokenProvider.
type API interface {
	GetUserAndCourses(ctx context.Context) (edapi.User, []edapi.Course, error)
	GetAllThreads(ctx context.Context, courseID int64, since time.Time) ([]edapi.Thread, error)
	GetThreadDetails(ctx context.Context, threadID int64) (edapi.Thread, error)
}

// Index is the slice of the vector index the orchestrator uses.
type Index interface {
	UpsertThreads(ctx context.Context, courseID int64, threads []edapi.Thread) (vectorstore.SyncResult, error)
	DeltaUpsert(ctx context.Context, courseID int64, threads []edapi.Thread, since time.Time) (vectorstore.SyncResult, error)
	DeleteCourse(ctx context.Context, courseID int64) error
	Health(ctx context.Context) error
}

// CourseRef identifies a course for sync requests.
type CourseRef struct {
	ID   int64
	Name string
	Code string
}

// Report summarizes one completed or failed sync run.
type Report struct {
	CourseID      int64
	SyncType      syncstate.Type
	WorkflowID    string
	TotalThreads  int
	SyncedThreads int
	FailedThreads []int64
	Documents     int
	Upserted      int
	Errors        []string
	Duration      time.Duration
}

// HealthStatus is the always-resolving result of a health probe.
type HealthStatus struct {
	IsHealthy bool
	Message   string
}

// Orchestrator coordinates the API client, extractor-backed index, and
// persisted sync states.
type Orchestrator struct {
	api    API
	index  Index
	states *syncstate.Store
	logger *slog.Logger
}

// New creates an Orchestrator.
func New(api API, index Index, states *syncstate.Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{api: api, index: index, states: states, logger: logger}
}

// StartCourseSync runs a full or delta sync for one course. The sync body
// is a single idempotent unit: its only side effects are ID-deterministic
// upserts and the final state write, so re-running after a crash redoes
// network work but cannot corrupt state.
//
// The returned Report is also reflected in the persisted state, which
// always ends in completed or failed.
func (o *Orchestrator) StartCourseSync(ctx context.Context, ref CourseRef, syncType syncstate.Type, forceFull bool) (*Report, error) {
	if forceFull {
		return o.ForceFullResync(ctx, ref)
	}

	// Validate the token with a cheap identity call before mutating any
	// state. Auth failures surface verbatim.
	if _, _, err := o.api.GetUserAndCourses(ctx); err != nil {
		var authErr *edapi.AuthError
		if errors.As(err, &authErr) {
			return nil, authErr
		}
		return nil, fmt.Errorf("validate token: %w", err)
	}

	state, err := o.states.Get(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &syncstate.State{CourseID: ref.ID, Status: syncstate.StatusIdle}
	}
	if state.Status == syncstate.StatusSyncing {
		return nil, fmt.Errorf("%w: %d", ErrSyncInProgress, ref.ID)
	}

	var since time.Time
	if syncType == syncstate.TypeDelta {
		if state.LastSuccessfulSyncAt != nil {
			since = *state.LastSuccessfulSyncAt
		} else {
			since = time.Now().Add(-DefaultLookback)
		}
	}

	now := time.Now().UTC()
	state.CourseName = ref.Name
	state.CourseCode = ref.Code
	state.Status = syncstate.StatusSyncing
	state.SyncType = syncType
	state.LastSyncAt = &now
	state.ErrorMessage = ""
	state.WorkflowID = uuid.New().String()
	if err := o.states.Save(ctx, state); err != nil {
		return nil, err
	}

	report, err := o.runSync(ctx, ref, state, syncType, since)
	if err != nil {
		o.markFailed(ctx, state, err)
		return nil, err
	}

	finished := time.Now().UTC()
	state.Status = syncstate.StatusCompleted
	state.LastSuccessfulSyncAt = &finished
	state.TotalThreads = report.TotalThreads
	state.SyncedThreads = report.SyncedThreads
	state.ErrorMessage = strings.Join(report.Errors, "; ")
	if err := o.states.Save(ctx, state); err != nil {
		return report, err
	}

	o.logger.Info("sync completed",
		"course_id", ref.ID,
		"sync_type", syncType,
		"threads", report.TotalThreads,
		"synced", report.SyncedThreads,
		"failed", len(report.FailedThreads),
		"duration", report.Duration,
	)
	return report, nil
}

// runSync is the sync body: fetch, enrich, upsert.
func (o *Orchestrator) runSync(ctx context.Context, ref CourseRef, state *syncstate.State, syncType syncstate.Type, since time.Time) (*Report, error) {
	start := time.Now()
	report := &Report{CourseID: ref.ID, SyncType: syncType, WorkflowID: state.WorkflowID}

	threads, err := o.api.GetAllThreads(ctx, ref.ID, since)
	if err != nil {
		return nil, fmt.Errorf("fetch threads: %w", err)
	}
	report.TotalThreads = len(threads)

	concurrency := FullConcurrency
	if syncType == syncstate.TypeDelta {
		concurrency = DeltaConcurrency
	}
	details, failed := o.enrichThreads(ctx, threads, concurrency)
	report.SyncedThreads = len(details)
	report.FailedThreads = failed
	for _, id := range failed {
		report.Errors = append(report.Errors, fmt.Sprintf("thread %d: detail fetch failed after retries", id))
	}

	var result vectorstore.SyncResult
	if syncType == syncstate.TypeDelta {
		result, err = o.index.DeltaUpsert(ctx, ref.ID, details, since)
	} else {
		result, err = o.index.UpsertThreads(ctx, ref.ID, details)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert threads: %w", err)
	}
	report.Documents = result.Documents
	report.Upserted = result.Upserted
	report.Errors = append(report.Errors, result.Errors...)
	report.Duration = time.Since(start)

	return report, nil
}

// enrichThreads fetches thread details in fixed-size concurrent slices.
// Each slice's fetches run together and are awaited before the next slice
// starts. Threads that fail all retries land in the failed list; they do
// not fail the sync.
func (o *Orchestrator) enrichThreads(ctx context.Context, threads []edapi.Thread, concurrency int) ([]edapi.Thread, []int64) {
	var (
		mu      sync.Mutex
		details []edapi.Thread
		failed  []int64
	)

	for i := 0; i < len(threads); i += concurrency {
		end := min(i+concurrency, len(threads))

		var wg sync.WaitGroup
		for _, t := range threads[i:end] {
			wg.Add(1)
			go func(threadID int64) {
				defer wg.Done()

				detail, err := retry.Do(ctx, retry.DefaultMaxAttempts, func(ctx context.Context) (edapi.Thread, error) {
					return o.api.GetThreadDetails(ctx, threadID)
				})

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					o.logger.Warn("thread enrichment failed", "thread_id", threadID, "error", err)
					failed = append(failed, threadID)
					return
				}
				details = append(details, detail)
			}(t.ID)
		}
		wg.Wait()
	}

	return details, failed
}

func (o *Orchestrator) markFailed(ctx context.Context, state *syncstate.State, cause error) {
	state.Status = syncstate.StatusFailed
	state.ErrorMessage = cause.Error()
	if err := o.states.Save(ctx, state); err != nil {
		o.logger.Error("failed to persist failed sync state", "course_id", state.CourseID, "error", err)
	}
}

// ForceFullResync deletes the course's existing vectors, resets its state
// to idle, and runs a fresh full sync. The escape hatch for index drift.
// A course that is already syncing is rejected before any vectors are
// deleted; one workflow per course holds even when a resync is forced.
func (o *Orchestrator) ForceFullResync(ctx context.Context, ref CourseRef) (*Report, error) {
	state, err := o.states.Get(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	if state != nil && state.Status == syncstate.StatusSyncing {
		return nil, fmt.Errorf("%w: %d", ErrSyncInProgress, ref.ID)
	}

	if err := o.index.DeleteCourse(ctx, ref.ID); err != nil {
		o.logger.Warn("delete course namespace failed, continuing resync", "course_id", ref.ID, "error", err)
	}

	if state != nil {
		state.Status = syncstate.StatusIdle
		state.LastSuccessfulSyncAt = nil
		state.ErrorMessage = ""
		if err := o.states.Save(ctx, state); err != nil {
			return nil, err
		}
	}

	return o.StartCourseSync(ctx, ref, syncstate.TypeFull, false)
}

// SyncAllActiveCourses resolves the caller's active courses and syncs each
// one, skipping any course already syncing. Cross-course ordering is not
// guaranteed.
func (o *Orchestrator) SyncAllActiveCourses(ctx context.Context, syncType syncstate.Type, forceFull bool) ([]*Report, error) {
	_, courses, err := o.api.GetUserAndCourses(ctx)
	if err != nil {
		return nil, err
	}

	var reports []*Report
	for _, course := range courses {
		if course.Status != "active" {
			continue
		}

		ref := CourseRef{ID: course.ID, Name: course.Name, Code: course.Code}
		report, err := o.StartCourseSync(ctx, ref, syncType, forceFull)
		if errors.Is(err, ErrSyncInProgress) {
			o.logger.Info("skipping course, sync in flight", "course_id", course.ID)
			continue
		}
		if err != nil {
			o.logger.Error("course sync failed", "course_id", course.ID, "error", err)
			continue
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// CourseSyncState returns the persisted state for one course, or nil if a
// sync has never been requested.
func (o *Orchestrator) CourseSyncState(ctx context.Context, courseID int64) (*syncstate.State, error) {
	return o.states.Get(ctx, courseID)
}

// AllSyncStates returns every persisted sync state.
func (o *Orchestrator) AllSyncStates(ctx context.Context) ([]syncstate.State, error) {
	return o.states.All(ctx)
}

// HealthStatus probes the upstream API and the vector store under an
// explicit timeout. It always resolves to a result, never an error.
func (o *Orchestrator) HealthStatus(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	type probe struct {
		name string
		err  error
	}
	results := make(chan probe, 2)

	go func() {
		_, _, err := o.api.GetUserAndCourses(ctx)
		results <- probe{name: "discussion api", err: err}
	}()
	go func() {
		results <- probe{name: "vector store", err: o.index.Health(ctx)}
	}()

	var problems []string
collect:
	for range 2 {
		select {
		case p := <-results:
			if p.err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", p.name, p.err))
			}
		case <-ctx.Done():
			// Both probes share the deadline; one entry covers them.
			problems = append(problems, "health probe timed out")
			break collect
		}
	}

	if len(problems) > 0 {
		return HealthStatus{IsHealthy: false, Message: strings.Join(problems, "; ")}
	}
	return HealthStatus{IsHealthy: true, Message: "ok"}
}

// CleanupCompletedSyncs removes completed/failed records older than the
// given age. A zero age uses the default.
func (o *Orchestrator) CleanupCompletedSyncs(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		olderThan = DefaultCleanupAge
	}
	return o.states.CleanupCompleted(ctx, time.Now().Add(-olderThan))
}

// ResetStuckSyncs flips states stuck in syncing past the threshold to
// failed. A zero threshold uses the default.
func (o *Orchestrator) ResetStuckSyncs(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultStuckThreshold
	}
	return o.states.ResetStuck(ctx, time.Now().Add(-maxAge))
}
