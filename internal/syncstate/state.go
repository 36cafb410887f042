// Package syncstate persists the per-course sync state machine.
package syncstate

import "time"

// Status is the lifecycle state of a course sync.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSyncing   Status = "syncing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Type distinguishes full re-indexing from incremental sync.
type Type string

const (
	TypeFull  Type = "full"
	TypeDelta Type = "delta"
)

// State is the persisted sync record for one course. Created on the first
// sync attempt, mutated only by the orchestrator, and removed only by
// explicit cleanup of old completed/failed records.
type State struct {
	CourseID             int64
	CourseName           string
	CourseCode           string
	Status               Status
	SyncType             Type
	LastSyncAt           *time.Time
	LastSuccessfulSyncAt *time.Time // advances only on completion; anchors the next delta
	NextScheduledSync    *time.Time
	TotalThreads         int
	SyncedThreads        int
	ErrorMessage         string
	WorkflowID           string
}
