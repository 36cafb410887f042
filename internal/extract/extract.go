// Package extract turns threads and their nested discussion trees into
// normalized index documents with deterministic IDs.
package extract

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/studyloop/edsync/internal/edapi"
)

// Document is the unit of content stored in the vector index.
type Document struct {
	ID       string
	Content  string
	Metadata Metadata
}

// Metadata carries the filterable fields stored alongside each document.
type Metadata struct {
	CourseID    int64
	ThreadID    int64
	CommentID   int64 // zero for thread documents
	Type        string
	PreviewText string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AuthorID    int64
	IsAnonymous bool
}

// Document types stored in the index.
const (
	TypeThread  = "thread"
	TypeAnswer  = "answer"
	TypeComment = "comment"
)

// minContentLength is the cleaned-text floor below which content is treated
// as noise and not indexed.
const minContentLength = 10

// previewLength bounds the preview text stored in metadata.
const previewLength = 120

// ThreadDocumentID derives the index ID for a thread document. IDs are pure
// functions of their source identifiers, which is what makes re-applied
// upserts idempotent.
func ThreadDocumentID(threadID int64) string {
	return fmt.Sprintf("thread_%d", threadID)
}

// CommentDocumentID derives the index ID for an answer or comment document.
func CommentDocumentID(docType string, threadID, commentID int64) string {
	return fmt.Sprintf("%s_%d_%d", docType, threadID, commentID)
}

// Documents extracts zero or more index documents from a thread: one for
// the thread body and one per answer/comment in its tree, skipping any
// whose cleaned text does not exceed the noise floor.
func Documents(t edapi.Thread) []Document {
	var docs []Document

	if body := CleanText(t.Document, t.Content); len(body) > minContentLength {
		content := body
		if t.Title != "" {
			content = t.Title + "\n\n" + body
		}
		docs = append(docs, Document{
			ID:      ThreadDocumentID(t.ID),
			Content: content,
			Metadata: Metadata{
				CourseID:    t.CourseID,
				ThreadID:    t.ID,
				Type:        TypeThread,
				PreviewText: preview(body),
				CreatedAt:   t.CreatedAt,
				UpdatedAt:   t.UpdatedAt,
				AuthorID:    t.UserID,
				IsAnonymous: t.IsAnonymous,
			},
		})
	}

	docs = append(docs, commentDocuments(t)...)
	return docs
}

type stackEntry struct {
	comment edapi.Comment
	docType string
}

// commentDocuments walks the answer/comment tree iteratively. An explicit
// stack is used because upstream nesting depth is unbounded. Nested replies
// under an answer are still typed "comment".
func commentDocuments(t edapi.Thread) []Document {
	var stack []stackEntry
	push := func(comments []edapi.Comment, docType string) {
		for i := len(comments) - 1; i >= 0; i-- {
			stack = append(stack, stackEntry{comment: comments[i], docType: docType})
		}
	}

	push(t.Comments, TypeComment)
	push(t.Answers, TypeAnswer)

	var docs []Document
	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		c := entry.comment

		if text := CleanText(c.Document, c.Content); len(text) > minContentLength {
			docs = append(docs, Document{
				ID:      CommentDocumentID(entry.docType, t.ID, c.ID),
				Content: text,
				Metadata: Metadata{
					CourseID:    t.CourseID,
					ThreadID:    t.ID,
					CommentID:   c.ID,
					Type:        entry.docType,
					PreviewText: preview(text),
					CreatedAt:   c.CreatedAt,
					UpdatedAt:   c.UpdatedAt,
					AuthorID:    c.UserID,
					IsAnonymous: c.IsAnonymous,
				},
			})
		}

		push(c.Children, TypeComment)
	}

	return docs
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanText prefers the already-plain document field over the HTML-bearing
// raw content. When only HTML is available, tags are stripped, entities
// unescaped, and whitespace collapsed.
func CleanText(document, content string) string {
	if text := strings.TrimSpace(document); text != "" {
		return whitespacePattern.ReplaceAllString(text, " ")
	}

	text := tagPattern.ReplaceAllString(content, " ")
	text = html.UnescapeString(text)
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

func preview(text string) string {
	if len(text) <= previewLength {
		return text
	}
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength])
}
