package edapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, StaticToken("test-token"), WithRateLimit(1000, 1000))
}

func TestGetUserAndCourses(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/user", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		fmt.Fprint(w, `{
			"user": {"id": 42, "name": "Ada", "email": "ada@example.edu"},
			"courses": [
				{"course": {"id": 1, "code": "CS101", "name": "Intro", "year": "2026", "session": "Spring", "status": "active"}, "role": "student"},
				{"course": {"id": 2, "code": "CS201", "name": "Algorithms", "year": "2025", "session": "Fall", "status": "archived"}, "role": "student"}
			]
		}`)
	}))

	user, courses, err := client.GetUserAndCourses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "Ada", user.Name)
	require.Len(t, courses, 2)
	assert.Equal(t, "CS101", courses[0].Code)
	assert.Equal(t, "active", courses[0].Status)
}

func TestGetUserAndCoursesMissingIdentity(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"courses": []}`)
	}))

	_, _, err := client.GetUserAndCourses(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestGetErrorEmbedsStatusAndBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": "rate limit exceeded"}`)
	}))

	_, _, err := client.GetUserAndCourses(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "rate limit exceeded")
}

func TestGetThreadsPage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/courses/7/threads", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "50", r.URL.Query().Get("offset"))

		fmt.Fprint(w, `{
			"threads": [
				{"id": 100, "course_id": 7, "title": "Assignment 1", "document": "How do I submit?", "created_at": "2026-03-01T10:00:00Z", "updated_at": "2026-03-02T10:00:00Z", "reply_count": 2},
				{"id": 101, "course_id": 7, "title": "Lecture notes", "content": "<p>Where are the notes?</p>", "created_at": "2026-03-01T11:00:00Z"}
			],
			"users": [{"id": 5, "name": "Tom"}]
		}`)
	}))

	threads, users, next, err := client.GetThreadsPage(context.Background(), 7, PageOptions{Limit: 25, Offset: 50})
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, int64(100), threads[0].ID)
	assert.Equal(t, "How do I submit?", threads[0].Document)
	// updated_at defaults to created_at when absent
	assert.Equal(t, threads[1].CreatedAt, threads[1].UpdatedAt)
	require.Len(t, users, 1)
	assert.Equal(t, 52, next)
}

// 250 threads with page size 100 should fetch exactly 3 pages (100, 100, 50)
// with no duplicate IDs.
func TestGetAllThreadsPagination(t *testing.T) {
	const total = 250
	requests := 0

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		offset, _ := parseQueryInt(r, "offset")
		limit, _ := parseQueryInt(r, "limit")

		var threads []map[string]any
		for i := offset; i < offset+limit && i < total; i++ {
			threads = append(threads, map[string]any{
				"id":         i + 1,
				"course_id":  7,
				"title":      fmt.Sprintf("thread %d", i+1),
				"created_at": "2026-03-01T10:00:00Z",
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"threads": threads, "users": []any{}})
	}))

	threads, err := client.GetAllThreads(context.Background(), 7, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, requests)
	assert.Len(t, threads, total)

	seen := make(map[int64]bool)
	for _, thread := range threads {
		assert.False(t, seen[thread.ID], "duplicate thread %d", thread.ID)
		seen[thread.ID] = true
	}
}

func TestGetAllThreadsEmptyCourse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"threads": [], "users": []}`)
	}))

	threads, err := client.GetAllThreads(context.Background(), 7, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, threads)
}

// The server-side since filter is not trusted: threads older than since are
// dropped client-side even when the server returns them.
func TestGetAllThreadsSinceRecheck(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("since"))
		fmt.Fprint(w, `{
			"threads": [
				{"id": 1, "course_id": 7, "updated_at": "2026-03-10T00:00:00Z"},
				{"id": 2, "course_id": 7, "updated_at": "2026-02-01T00:00:00Z"},
				{"id": 3, "course_id": 7, "updated_at": "2026-03-05T00:00:00Z"}
			],
			"users": []
		}`)
	}))

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	threads, err := client.GetAllThreads(context.Background(), 7, since)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	for _, thread := range threads {
		assert.False(t, thread.UpdatedAt.Before(since))
	}
}

func TestGetThreadDetails(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/threads/100", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("view"))

		fmt.Fprint(w, `{
			"thread": {
				"id": 100, "course_id": 7, "title": "Assignment 1",
				"document": "How do I submit?",
				"created_at": "2026-03-01T10:00:00Z", "updated_at": "2026-03-02T10:00:00Z",
				"answers": [
					{"id": 200, "document": "Use the upload portal.", "comments": [
						{"id": 201, "document": "That worked, thanks!"}
					]}
				],
				"comments": [
					{"id": 300, "document": "Same question here."}
				]
			}
		}`)
	}))

	thread, err := client.GetThreadDetails(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), thread.ID)

	require.Len(t, thread.Answers, 1)
	answer := thread.Answers[0]
	assert.Equal(t, CommentTypeAnswer, answer.Type)
	assert.Equal(t, int64(100), answer.ThreadID)

	// Nested replies under an answer are still typed comment.
	require.Len(t, answer.Children, 1)
	assert.Equal(t, CommentTypeComment, answer.Children[0].Type)

	require.Len(t, thread.Comments, 1)
	assert.Equal(t, CommentTypeComment, thread.Comments[0].Type)
}

func TestGetThreadDetailsMalformed(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Comment without an id is rejected, not silently coerced.
		fmt.Fprint(w, `{"thread": {"id": 100, "answers": [{"document": "no id"}]}}`)
	}))

	_, err := client.GetThreadDetails(context.Background(), 100)

	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}

func TestTransportErrorIsAPIError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", StaticToken("t"), WithRateLimit(1000, 1000))

	_, err := client.GetThreadDetails(context.Background(), 1)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Zero(t, apiErr.StatusCode)
}

func parseQueryInt(r *http.Request, key string) (int, error) {
	var i int
	_, err := fmt.Sscanf(r.URL.Query().Get(key), "%d", &i)
	return i, err
}
