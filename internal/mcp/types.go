// Package mcp exposes the synced course index as retrieval tools.
package mcp

import "time"

// SearchCourseInput defines the input parameters for the search_course tool.
type SearchCourseInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query for finding relevant course discussion"`
	// CourseID scopes the search to one course.
	CourseID int64 `json:"course_id" jsonschema:"required,description=The course to search"`
	// MaxResults is the maximum number of documents to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of documents to return"`
	// ThreadsOnly restricts results to thread documents, excluding answers and comments.
	ThreadsOnly bool `json:"threads_only,omitempty" jsonschema:"description=Only return thread documents"`
}

// SearchCourseOutput contains the search results.
type SearchCourseOutput struct {
	// Results is the list of matching documents.
	Results []SearchResult `json:"results"`
	// Message provides informational context (e.g. no matches found).
	Message string `json:"message,omitempty"`
}

// SearchResult is a single match from the course index.
type SearchResult struct {
	// DocumentID is the deterministic index document ID.
	DocumentID string `json:"document_id"`
	// Score is the similarity score (0-1).
	Score float64 `json:"score"`
	// Type is thread, answer, or comment.
	Type string `json:"type"`
	// ThreadID is the thread this document belongs to.
	ThreadID int64 `json:"thread_id"`
	// Preview is a short excerpt of the document text.
	Preview string `json:"preview"`
	// Content is the full document text.
	Content string `json:"content"`
}

// SyncStatusInput defines the input parameters for the course_sync_status tool.
type SyncStatusInput struct {
	// CourseID selects one course; zero returns all courses.
	CourseID int64 `json:"course_id,omitempty" jsonschema:"description=Course to report on; omit for all courses"`
}

// SyncStatusOutput contains sync state records.
type SyncStatusOutput struct {
	States []SyncStatusRecord `json:"states"`
}

// SyncStatusRecord is one course's sync state.
type SyncStatusRecord struct {
	CourseID             int64      `json:"course_id"`
	CourseCode           string     `json:"course_code"`
	Status               string     `json:"status"`
	SyncType             string     `json:"sync_type"`
	LastSyncAt           *time.Time `json:"last_sync_at,omitempty"`
	LastSuccessfulSyncAt *time.Time `json:"last_successful_sync_at,omitempty"`
	TotalThreads         int        `json:"total_threads"`
	SyncedThreads        int        `json:"synced_threads"`
	ErrorMessage         string     `json:"error_message,omitempty"`
}

// ListCoursesInput defines the input parameters for the list_courses tool.
// This tool takes no parameters.
type ListCoursesInput struct{}

// ListCoursesOutput contains the caller's enrolled courses.
type ListCoursesOutput struct {
	Courses []CourseRecord `json:"courses"`
	Count   int            `json:"count"`
}

// CourseRecord is one enrolled course.
type CourseRecord struct {
	ID      int64  `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Year    string `json:"year"`
	Session string `json:"session"`
	Status  string `json:"status"`
}
