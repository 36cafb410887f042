package extract

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyloop/edsync/internal/edapi"
)

func TestDocumentIDsAreDeterministic(t *testing.T) {
	assert.Equal(t, "thread_42", ThreadDocumentID(42))
	assert.Equal(t, "answer_42_7", CommentDocumentID(TypeAnswer, 42, 7))
	assert.Equal(t, "comment_42_7", CommentDocumentID(TypeComment, 42, 7))
}

func TestDocumentsFromThreadBody(t *testing.T) {
	thread := edapi.Thread{
		ID:        42,
		CourseID:  7,
		Title:     "Assignment 1",
		Document:  "How do I submit the first assignment?",
		UserID:    5,
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}

	docs := Documents(thread)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "thread_42", doc.ID)
	assert.Contains(t, doc.Content, "Assignment 1")
	assert.Contains(t, doc.Content, "How do I submit")
	assert.Equal(t, TypeThread, doc.Metadata.Type)
	assert.Equal(t, int64(7), doc.Metadata.CourseID)
	assert.Equal(t, int64(42), doc.Metadata.ThreadID)
	assert.Zero(t, doc.Metadata.CommentID)
}

// A 2-character thread body is below the noise floor: only the answer with
// real content produces a document.
func TestDocumentsShortBodySkipped(t *testing.T) {
	thread := edapi.Thread{
		ID:       42,
		Document: "ok",
		Answers: []edapi.Comment{
			{ID: 9, Type: edapi.CommentTypeAnswer, Document: strings.Repeat("submit via the portal ", 3)},
		},
	}

	docs := Documents(thread)
	require.Len(t, docs, 1)
	assert.Equal(t, "answer_42_9", docs[0].ID)
	assert.Equal(t, TypeAnswer, docs[0].Metadata.Type)
}

func TestDocumentsNestedRepliesTypedComment(t *testing.T) {
	thread := edapi.Thread{
		ID:       42,
		Document: "a question long enough to index",
		Answers: []edapi.Comment{
			{
				ID:       10,
				Type:     edapi.CommentTypeAnswer,
				Document: "an answer long enough to index",
				Children: []edapi.Comment{
					{ID: 11, Document: "a nested reply long enough to index"},
				},
			},
		},
		Comments: []edapi.Comment{
			{ID: 20, Document: "a top-level comment long enough to index"},
		},
	}

	docs := Documents(thread)
	require.Len(t, docs, 4)

	byID := make(map[string]Document)
	for _, doc := range docs {
		byID[doc.ID] = doc
	}

	assert.Contains(t, byID, "thread_42")
	assert.Contains(t, byID, "answer_42_10")
	assert.Contains(t, byID, "comment_42_11", "nested reply under an answer is typed comment")
	assert.Contains(t, byID, "comment_42_20")
}

func TestDocumentsDeepNesting(t *testing.T) {
	// Build a 5000-deep reply chain; the iterative walk must not recurse.
	leaf := edapi.Comment{ID: 5000, Document: "the deepest reply, long enough to index"}
	for i := 4999; i >= 1; i-- {
		leaf = edapi.Comment{
			ID:       int64(i),
			Document: fmt.Sprintf("reply number %d, long enough to index", i),
			Children: []edapi.Comment{leaf},
		}
	}
	thread := edapi.Thread{ID: 1, Comments: []edapi.Comment{leaf}}

	docs := Documents(thread)
	assert.Len(t, docs, 5000)
}

func TestDocumentsIdempotent(t *testing.T) {
	thread := edapi.Thread{
		ID:       42,
		Document: "a question long enough to index",
		Answers: []edapi.Comment{
			{ID: 10, Document: "an answer long enough to index"},
		},
	}

	first := Documents(thread)
	second := Documents(thread)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestPreviewKeepsRunesIntact(t *testing.T) {
	short := "résumé"
	assert.Equal(t, short, preview(short))

	long := strings.Repeat("é", previewLength+80)
	got := preview(long)
	assert.True(t, utf8.ValidString(got), "preview must not split a multi-byte rune")
	assert.Equal(t, previewLength, utf8.RuneCountInString(got))
}

func TestCleanTextPrefersPlainDocument(t *testing.T) {
	got := CleanText("already  plain\n\ntext", "<p>ignored html</p>")
	assert.Equal(t, "already plain text", got)
}

func TestCleanTextStripsHTML(t *testing.T) {
	got := CleanText("", "<p>Hello <b>world</b>!</p>\n<p>More &amp; more</p>")
	assert.Equal(t, "Hello world ! More & more", got)
}

func TestCleanTextEmpty(t *testing.T) {
	assert.Equal(t, "", CleanText("", ""))
	assert.Equal(t, "", CleanText("   ", "<br/>"))
}
