package edapi

import "time"

// User is the authenticated identity returned by the discussion service.
type User struct {
	ID    int64
	Name  string
	Email string
}

// Course is an enrolled course as reported by the discussion service.
// Courses are read-only from this module's perspective.
type Course struct {
	ID      int64
	Code    string
	Name    string
	Year    string
	Session string
	Status  string
}

// Thread is a top-level discussion post. Answers and Comments are only
// populated by GetThreadDetails; thread listings return them empty.
type Thread struct {
	ID          int64
	CourseID    int64
	Title       string
	Document    string // plain-text body, may be empty
	Content     string // raw HTML body
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ReplyCount  int
	IsAnonymous bool
	UserID      int64
	Answers     []Comment
	Comments    []Comment
}

// Comment is one node of a thread's discussion tree. Children holds nested
// replies; depth is bounded only by the upstream data.
type Comment struct {
	ID          int64
	ThreadID    int64
	ParentID    int64 // zero for top-level answers/comments
	Type        string
	Document    string
	Content     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UserID      int64
	IsAnonymous bool
	Children    []Comment
}

// Comment types as reported (or defaulted) by the parser.
const (
	CommentTypeAnswer  = "answer"
	CommentTypeComment = "comment"
)
