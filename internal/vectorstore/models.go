package vectorstore

import "fmt"

// CourseNamespace is the isolation boundary for a course's vectors: one
// Qdrant collection per course. Dropping the collection is how "delete
// course" stays a single operation.
func CourseNamespace(courseID int64) string {
	return fmt.Sprintf("course_%d", courseID)
}

// upsertBatchSize is the fixed chunk size for writes; the store rejects
// oversized batches.
const upsertBatchSize = 100

// UpsertResult reports the outcome of a batched upsert. A failed chunk is
// recorded in Errors without aborting the remaining chunks.
type UpsertResult struct {
	Upserted int
	Errors   []string
}

// SyncResult reports the outcome of indexing a set of threads.
type SyncResult struct {
	Threads   int
	Documents int
	Upserted  int
	Errors    []string
}

// SearchResult is one similarity match from a course namespace.
type SearchResult struct {
	DocumentID  string
	Score       float64
	Type        string
	ThreadID    int64
	Title       string
	PreviewText string
	Content     string
}

// SearchOptions controls a similarity query.
type SearchOptions struct {
	TopK int
	Type string // restrict to one document type, empty for all
}

// Stats summarizes a course namespace by document family.
type Stats struct {
	Total        int
	ThreadCount  int
	AnswerCount  int
	CommentCount int
}
