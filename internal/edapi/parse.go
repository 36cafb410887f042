package edapi

import (
	"encoding/json"
	"time"
)

// Wire shapes mirror the upstream JSON, which is loosely typed: numeric ids
// sometimes arrive as strings, optional fields are frequently absent, and
// nested comments omit their type. Parsing coerces everything into the
// strict model types or fails with MalformedResponseError.

type userWire struct {
	ID    json.Number `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
}

type courseWire struct {
	ID      json.Number `json:"id"`
	Code    string      `json:"code"`
	Name    string      `json:"name"`
	Year    string      `json:"year"`
	Session string      `json:"session"`
	Status  string      `json:"status"`
}

type threadWire struct {
	ID          json.Number   `json:"id"`
	CourseID    json.Number   `json:"course_id"`
	Title       string        `json:"title"`
	Document    string        `json:"document"`
	Content     string        `json:"content"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
	ReplyCount  int           `json:"reply_count"`
	IsAnonymous bool          `json:"is_anonymous"`
	UserID      json.Number   `json:"user_id"`
	Answers     []commentWire `json:"answers"`
	Comments    []commentWire `json:"comments"`
}

type commentWire struct {
	ID          json.Number   `json:"id"`
	ThreadID    json.Number   `json:"thread_id"`
	ParentID    *json.Number  `json:"parent_id"`
	Type        string        `json:"type"`
	Document    string        `json:"document"`
	Content     string        `json:"content"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
	UserID      json.Number   `json:"user_id"`
	IsAnonymous bool          `json:"is_anonymous"`
	Comments    []commentWire `json:"comments"`
}

func parseUser(op string, w userWire) (User, error) {
	id, err := w.ID.Int64()
	if err != nil || id == 0 {
		return User{}, &MalformedResponseError{Op: op, Reason: "user missing id"}
	}
	return User{ID: id, Name: w.Name, Email: w.Email}, nil
}

func parseCourse(op string, w courseWire) (Course, error) {
	id, err := w.ID.Int64()
	if err != nil || id == 0 {
		return Course{}, &MalformedResponseError{Op: op, Reason: "course missing id"}
	}
	return Course{
		ID:      id,
		Code:    w.Code,
		Name:    w.Name,
		Year:    w.Year,
		Session: w.Session,
		Status:  w.Status,
	}, nil
}

func parseThread(op string, w threadWire) (Thread, error) {
	id, err := w.ID.Int64()
	if err != nil || id == 0 {
		return Thread{}, &MalformedResponseError{Op: op, Reason: "thread missing id"}
	}
	courseID, _ := w.CourseID.Int64()
	userID, _ := w.UserID.Int64()

	created := parseTime(w.CreatedAt)
	updated := parseTime(w.UpdatedAt)
	if updated.IsZero() {
		updated = created
	}

	t := Thread{
		ID:          id,
		CourseID:    courseID,
		Title:       w.Title,
		Document:    w.Document,
		Content:     w.Content,
		CreatedAt:   created,
		UpdatedAt:   updated,
		ReplyCount:  w.ReplyCount,
		IsAnonymous: w.IsAnonymous,
		UserID:      userID,
	}

	for _, cw := range w.Answers {
		c, err := parseComment(op, cw, id, CommentTypeAnswer)
		if err != nil {
			return Thread{}, err
		}
		t.Answers = append(t.Answers, c)
	}
	for _, cw := range w.Comments {
		c, err := parseComment(op, cw, id, CommentTypeComment)
		if err != nil {
			return Thread{}, err
		}
		t.Comments = append(t.Comments, c)
	}
	return t, nil
}

// parseComment coerces one comment node and its children. Nested replies
// under an answer default to type "comment" via fallbackType.
func parseComment(op string, w commentWire, threadID int64, fallbackType string) (Comment, error) {
	id, err := w.ID.Int64()
	if err != nil || id == 0 {
		return Comment{}, &MalformedResponseError{Op: op, Reason: "comment missing id"}
	}

	tid, _ := w.ThreadID.Int64()
	if tid == 0 {
		tid = threadID
	}

	var parentID int64
	if w.ParentID != nil {
		parentID, _ = w.ParentID.Int64()
	}

	ctype := w.Type
	if ctype != CommentTypeAnswer && ctype != CommentTypeComment {
		ctype = fallbackType
	}

	created := parseTime(w.CreatedAt)
	updated := parseTime(w.UpdatedAt)
	if updated.IsZero() {
		updated = created
	}

	userID, _ := w.UserID.Int64()

	c := Comment{
		ID:          id,
		ThreadID:    tid,
		ParentID:    parentID,
		Type:        ctype,
		Document:    w.Document,
		Content:     w.Content,
		CreatedAt:   created,
		UpdatedAt:   updated,
		UserID:      userID,
		IsAnonymous: w.IsAnonymous,
	}

	for _, cw := range w.Comments {
		child, err := parseComment(op, cw, tid, CommentTypeComment)
		if err != nil {
			return Comment{}, err
		}
		c.Children = append(c.Children, child)
	}
	return c, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
