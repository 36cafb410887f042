package syncstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store is a SQLite-backed sync state store. SQLite in WAL mode provides
// the locking; all methods are safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS sync_states (
	course_id               INTEGER PRIMARY KEY,
	course_name             TEXT NOT NULL DEFAULT '',
	course_code             TEXT NOT NULL DEFAULT '',
	status                  TEXT NOT NULL,
	sync_type               TEXT NOT NULL,
	last_sync_at            TEXT,
	last_successful_sync_at TEXT,
	next_scheduled_sync     TEXT,
	total_threads           INTEGER NOT NULL DEFAULT 0,
	synced_threads          INTEGER NOT NULL DEFAULT 0,
	error_message           TEXT NOT NULL DEFAULT '',
	workflow_id             TEXT NOT NULL DEFAULT ''
)`

// NewStore opens (or creates) the sync state database at dataDir. An empty
// dataDir defaults to ~/.edsync/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".edsync", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "syncstate.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sync_states table: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Get retrieves the sync state for a course. Returns nil and no error if no
// record exists yet.
func (s *Store) Get(ctx context.Context, courseID int64) (*State, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT course_id, course_name, course_code, status, sync_type,
		       last_sync_at, last_successful_sync_at, next_scheduled_sync,
		       total_threads, synced_threads, error_message, workflow_id
		FROM sync_states WHERE course_id = ?
	`, courseID)

	state, err := scanState(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying sync state: %w", err)
	}
	return state, nil
}

// All returns every persisted sync state.
func (s *Store) All(ctx context.Context) ([]State, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT course_id, course_name, course_code, status, sync_type,
		       last_sync_at, last_successful_sync_at, next_scheduled_sync,
		       total_threads, synced_threads, error_message, workflow_id
		FROM sync_states ORDER BY course_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sync states: %w", err)
	}
	defer rows.Close()

	var states []State
	for rows.Next() {
		state, err := scanState(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning sync state: %w", err)
		}
		states = append(states, *state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync states: %w", err)
	}
	return states, nil
}

// Save creates or updates a course's sync state, keyed by course ID.
func (s *Store) Save(ctx context.Context, state *State) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_states (course_id, course_name, course_code, status, sync_type,
			last_sync_at, last_successful_sync_at, next_scheduled_sync,
			total_threads, synced_threads, error_message, workflow_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(course_id) DO UPDATE SET
			course_name = excluded.course_name,
			course_code = excluded.course_code,
			status = excluded.status,
			sync_type = excluded.sync_type,
			last_sync_at = excluded.last_sync_at,
			last_successful_sync_at = excluded.last_successful_sync_at,
			next_scheduled_sync = excluded.next_scheduled_sync,
			total_threads = excluded.total_threads,
			synced_threads = excluded.synced_threads,
			error_message = excluded.error_message,
			workflow_id = excluded.workflow_id
	`, state.CourseID, state.CourseName, state.CourseCode, string(state.Status), string(state.SyncType),
		formatNullableTime(state.LastSyncAt), formatNullableTime(state.LastSuccessfulSyncAt),
		formatNullableTime(state.NextScheduledSync),
		state.TotalThreads, state.SyncedThreads, state.ErrorMessage, state.WorkflowID)

	if err != nil {
		return fmt.Errorf("saving sync state: %w", err)
	}
	return nil
}

// CleanupCompleted deletes completed and failed records whose last sync is
// older than the cutoff. Returns the number of records removed.
func (s *Store) CleanupCompleted(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_states
		WHERE status IN (?, ?) AND last_sync_at IS NOT NULL AND last_sync_at < ?
	`, string(StatusCompleted), string(StatusFailed), cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("cleaning up sync states: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// ResetStuck flips records stuck in syncing past the cutoff to failed.
// Returns the number of records reset.
func (s *Store) ResetStuck(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sync_states
		SET status = ?, error_message = ?
		WHERE status = ? AND last_sync_at IS NOT NULL AND last_sync_at < ?
	`, string(StatusFailed), "sync timed out and was reset",
		string(StatusSyncing), cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("resetting stuck syncs: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func scanState(scan func(...any) error) (*State, error) {
	var st State
	var status, syncType string
	var lastSync, lastSuccess, nextScheduled sql.NullString

	err := scan(&st.CourseID, &st.CourseName, &st.CourseCode, &status, &syncType,
		&lastSync, &lastSuccess, &nextScheduled,
		&st.TotalThreads, &st.SyncedThreads, &st.ErrorMessage, &st.WorkflowID)
	if err != nil {
		return nil, err
	}

	st.Status = Status(status)
	st.SyncType = Type(syncType)
	st.LastSyncAt = parseNullableTime(lastSync)
	st.LastSuccessfulSyncAt = parseNullableTime(lastSuccess)
	st.NextScheduledSync = parseNullableTime(nextScheduled)
	return &st, nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
