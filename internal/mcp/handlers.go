package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/studyloop/edsync/internal/edapi"
	"github.com/studyloop/edsync/internal/extract"
	"github.com/studyloop/edsync/internal/orchestrator"
	"github.com/studyloop/edsync/internal/syncstate"
	"github.com/studyloop/edsync/internal/vectorstore"
)

// makeSearchHandler creates the search_course tool handler.
func makeSearchHandler(index *vectorstore.Index) func(
	context.Context, *mcp.CallToolRequest, SearchCourseInput,
) (*mcp.CallToolResult, SearchCourseOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchCourseInput) (
		*mcp.CallToolResult, SearchCourseOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = 5
		}

		opts := vectorstore.SearchOptions{TopK: maxResults}
		if input.ThreadsOnly {
			opts.Type = extract.TypeThread
		}

		matches, err := index.Search(ctx, input.Query, input.CourseID, opts)
		if err != nil {
			return nil, SearchCourseOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]SearchResult, 0, len(matches))
		for _, m := range matches {
			results = append(results, SearchResult{
				DocumentID: m.DocumentID,
				Score:      m.Score,
				Type:       m.Type,
				ThreadID:   m.ThreadID,
				Preview:    m.PreviewText,
				Content:    m.Content,
			})
		}

		if len(results) == 0 {
			return nil, SearchCourseOutput{
				Results: []SearchResult{},
				Message: "No matching discussion found. Try broader search terms, or sync the course first.",
			}, nil
		}

		return nil, SearchCourseOutput{Results: results}, nil
	}
}

// makeStatusHandler creates the course_sync_status tool handler.
func makeStatusHandler(orch *orchestrator.Orchestrator) func(
	context.Context, *mcp.CallToolRequest, SyncStatusInput,
) (*mcp.CallToolResult, SyncStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SyncStatusInput) (
		*mcp.CallToolResult, SyncStatusOutput, error,
	) {
		var records []SyncStatusRecord

		if input.CourseID != 0 {
			state, err := orch.CourseSyncState(ctx, input.CourseID)
			if err != nil {
				return nil, SyncStatusOutput{}, fmt.Errorf("load sync state: %w", err)
			}
			if state != nil {
				records = append(records, toRecord(*state))
			}
		} else {
			states, err := orch.AllSyncStates(ctx)
			if err != nil {
				return nil, SyncStatusOutput{}, fmt.Errorf("load sync states: %w", err)
			}
			for _, state := range states {
				records = append(records, toRecord(state))
			}
		}

		if records == nil {
			records = []SyncStatusRecord{}
		}
		return nil, SyncStatusOutput{States: records}, nil
	}
}

// makeListCoursesHandler creates the list_courses tool handler. Course
// resolution goes through the discussion API, not the index.
func makeListCoursesHandler(api *edapi.Client) func(
	context.Context, *mcp.CallToolRequest, ListCoursesInput,
) (*mcp.CallToolResult, ListCoursesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListCoursesInput) (
		*mcp.CallToolResult, ListCoursesOutput, error,
	) {
		_, courses, err := api.GetUserAndCourses(ctx)
		if err != nil {
			return nil, ListCoursesOutput{}, fmt.Errorf("resolve courses: %w", err)
		}

		records := make([]CourseRecord, 0, len(courses))
		for _, c := range courses {
			records = append(records, CourseRecord{
				ID:      c.ID,
				Code:    c.Code,
				Name:    c.Name,
				Year:    c.Year,
				Session: c.Session,
				Status:  c.Status,
			})
		}

		return nil, ListCoursesOutput{Courses: records, Count: len(records)}, nil
	}
}

func toRecord(state syncstate.State) SyncStatusRecord {
	return SyncStatusRecord{
		CourseID:             state.CourseID,
		CourseCode:           state.CourseCode,
		Status:               string(state.Status),
		SyncType:             string(state.SyncType),
		LastSyncAt:           state.LastSyncAt,
		LastSuccessfulSyncAt: state.LastSuccessfulSyncAt,
		TotalThreads:         state.TotalThreads,
		SyncedThreads:        state.SyncedThreads,
		ErrorMessage:         state.ErrorMessage,
	}
}
