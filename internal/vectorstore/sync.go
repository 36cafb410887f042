package vectorstore

import (
	"context"
	"time"

	"github.com/studyloop/edsync/internal/edapi"
	"github.com/studyloop/edsync/internal/extract"
)

// UpsertThreads extracts documents from every thread and writes them into
// the course namespace in one batched pass.
func (ix *Index) UpsertThreads(ctx context.Context, courseID int64, threads []edapi.Thread) (SyncResult, error) {
	result := SyncResult{Threads: len(threads)}

	var docs []extract.Document
	for _, t := range threads {
		docs = append(docs, extract.Documents(t)...)
	}
	result.Documents = len(docs)

	upsert, err := ix.UpsertBatch(ctx, courseID, docs)
	if err != nil {
		return result, err
	}
	result.Upserted = upsert.Upserted
	result.Errors = append(result.Errors, upsert.Errors...)

	ix.logger.Info("upserted threads",
		"course_id", courseID,
		"threads", result.Threads,
		"documents", result.Documents,
		"upserted", result.Upserted,
		"errors", len(result.Errors),
	)
	return result, nil
}

// DeltaUpsert indexes only the threads updated at or after since.
func (ix *Index) DeltaUpsert(ctx context.Context, courseID int64, threads []edapi.Thread, since time.Time) (SyncResult, error) {
	updated := make([]edapi.Thread, 0, len(threads))
	for _, t := range threads {
		if !t.UpdatedAt.Before(since) {
			updated = append(updated, t)
		}
	}
	return ix.UpsertThreads(ctx, courseID, updated)
}
