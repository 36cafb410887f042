package edapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultPageLimit is the thread page size requested from the upstream.
	DefaultPageLimit = 100

	// maxThreadsPerCourse caps pagination so a server that keeps returning
	// full pages cannot loop us forever.
	maxThreadsPerCourse = 20000
)

// PageOptions controls a single thread-list page fetch.
type PageOptions struct {
	Limit  int
	Offset int
	Since  time.Time // zero means no date filter
}

// GetUserAndCourses fetches the caller's identity and enrolled courses.
// Returns *AuthError when the response lacks the required identity fields,
// which is how an invalid or expired token manifests upstream.
func (c *Client) GetUserAndCourses(ctx context.Context) (User, []Course, error) {
	const op = "get user"

	var resp struct {
		User    userWire `json:"user"`
		Courses []struct {
			Course courseWire `json:"course"`
			Role   string     `json:"role"`
		} `json:"courses"`
	}
	if err := c.get(ctx, op, "/api/user", nil, &resp); err != nil {
		return User{}, nil, err
	}

	user, err := parseUser(op, resp.User)
	if err != nil {
		return User{}, nil, &AuthError{Reason: "response missing user identity, token likely invalid"}
	}

	courses := make([]Course, 0, len(resp.Courses))
	for _, cw := range resp.Courses {
		course, err := parseCourse(op, cw.Course)
		if err != nil {
			return User{}, nil, err
		}
		courses = append(courses, course)
	}
	return user, courses, nil
}

// GetThreadsPage fetches one page of threads for a course, newest first.
// It returns the page's threads, the participating users, and the offset
// for the next page.
func (c *Client) GetThreadsPage(ctx context.Context, courseID int64, opts PageOptions) ([]Thread, []User, int, error) {
	op := fmt.Sprintf("list threads course %d", courseID)

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(opts.Offset))
	query.Set("sort", "new")
	if !opts.Since.IsZero() {
		query.Set("since", opts.Since.UTC().Format(time.RFC3339))
	}

	var resp struct {
		Threads []threadWire `json:"threads"`
		Users   []userWire   `json:"users"`
	}
	if err := c.get(ctx, op, fmt.Sprintf("/api/courses/%d/threads", courseID), query, &resp); err != nil {
		return nil, nil, 0, err
	}

	threads := make([]Thread, 0, len(resp.Threads))
	for _, tw := range resp.Threads {
		t, err := parseThread(op, tw)
		if err != nil {
			return nil, nil, 0, err
		}
		threads = append(threads, t)
	}

	users := make([]User, 0, len(resp.Users))
	for _, uw := range resp.Users {
		u, err := parseUser(op, uw)
		if err != nil {
			continue // participant records are best-effort
		}
		users = append(users, u)
	}

	return threads, users, opts.Offset + len(resp.Threads), nil
}

// GetAllThreads pages through a course's full thread list. Pagination is
// strictly sequential: each page's offset comes from the previous response.
// It terminates on a short or empty page, or at maxThreadsPerCourse if the
// upstream pagination contract is violated.
//
// When since is non-zero, each returned thread's UpdatedAt is re-checked
// locally; the server-side date filter is not trusted to be exact.
func (c *Client) GetAllThreads(ctx context.Context, courseID int64, since time.Time) ([]Thread, error) {
	var all []Thread
	offset := 0

	for {
		page, _, next, err := c.GetThreadsPage(ctx, courseID, PageOptions{
			Limit:  DefaultPageLimit,
			Offset: offset,
			Since:  since,
		})
		if err != nil {
			return nil, err
		}

		for _, t := range page {
			if !since.IsZero() && t.UpdatedAt.Before(since) {
				continue
			}
			all = append(all, t)
		}

		if len(page) == 0 || len(page) < DefaultPageLimit {
			break
		}
		if next >= maxThreadsPerCourse {
			break
		}
		offset = next
	}

	return all, nil
}

// GetThreadDetails fetches a single thread with its full nested discussion
// tree (answers and comments, recursively).
func (c *Client) GetThreadDetails(ctx context.Context, threadID int64) (Thread, error) {
	op := fmt.Sprintf("get thread %d", threadID)

	query := url.Values{}
	query.Set("view", "1")

	var resp struct {
		Thread threadWire `json:"thread"`
	}
	if err := c.get(ctx, op, fmt.Sprintf("/api/threads/%d", threadID), query, &resp); err != nil {
		return Thread{}, err
	}

	return parseThread(op, resp.Thread)
}
