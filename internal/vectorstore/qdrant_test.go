// +build integration

package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyloop/edsync/internal/embedding"
	"github.com/studyloop/edsync/internal/extract"
)

// setupTestIndex connects to a local Qdrant, skipping the test if the store
// is not running. The embedder is nil: these tests insert pre-built vectors
// directly so no embedding provider is needed.
func setupTestIndex(t *testing.T) *Index {
	index, err := NewIndex("localhost", 6334, nil, nil)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	t.Cleanup(func() { index.Close() })
	return index
}

// testDocument fabricates a document in a given family for one thread.
func testDocument(docType string, threadID, commentID int64) extract.Document {
	id := extract.ThreadDocumentID(threadID)
	if docType != extract.TypeThread {
		id = extract.CommentDocumentID(docType, threadID, commentID)
	}
	return extract.Document{
		ID:      id,
		Content: "content for " + id,
		Metadata: extract.Metadata{
			ThreadID:  threadID,
			CommentID: commentID,
			Type:      docType,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		},
	}
}

// insertDocuments writes documents with a constant fake vector, bypassing
// the embedder.
func insertDocuments(t *testing.T, index *Index, courseID int64, docs []extract.Document) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, index.ensureNamespace(ctx, courseID))

	vector := make([]float32, embedding.Dimension)
	for i := range vector {
		vector[i] = 0.1
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		points[i] = &qdrant.PointStruct{
			Id:      pointID(doc.ID),
			Vectors: qdrant.NewVectors(vector...),
			Payload: qdrant.NewValueMap(payloadFor(doc)),
		}
	}
	require.NoError(t, index.upsertWithRetry(ctx, CourseNamespace(courseID), points))
}

func TestEnsureNamespaceIdempotent(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()
	courseID := int64(910001)
	defer index.DeleteCourse(ctx, courseID)

	require.NoError(t, index.ensureNamespace(ctx, courseID))
	require.NoError(t, index.ensureNamespace(ctx, courseID))
}

func TestUpsertIsIdempotentPerDocument(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()
	courseID := int64(910002)
	defer index.DeleteCourse(ctx, courseID)

	docs := []extract.Document{
		testDocument(extract.TypeThread, 42, 0),
		testDocument(extract.TypeAnswer, 42, 9),
	}
	insertDocuments(t, index, courseID, docs)
	insertDocuments(t, index, courseID, docs) // same IDs, same points

	time.Sleep(100 * time.Millisecond)

	stats := index.CourseStats(ctx, courseID)
	assert.Equal(t, 2, stats.Total, "re-upserting identical documents must not duplicate points")
	assert.Equal(t, 1, stats.ThreadCount)
	assert.Equal(t, 1, stats.AnswerCount)
}

func TestDeleteThreadRemovesAllFamilies(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()
	courseID := int64(910003)
	defer index.DeleteCourse(ctx, courseID)

	insertDocuments(t, index, courseID, []extract.Document{
		testDocument(extract.TypeThread, 42, 0),
		testDocument(extract.TypeAnswer, 42, 9),
		testDocument(extract.TypeComment, 42, 11),
		testDocument(extract.TypeThread, 43, 0), // different thread, must survive
	})

	time.Sleep(100 * time.Millisecond)

	deleted, err := index.DeleteThread(ctx, courseID, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	time.Sleep(100 * time.Millisecond)

	stats := index.CourseStats(ctx, courseID)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ThreadCount)
}

func TestDeleteCourseDropsNamespace(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()
	courseID := int64(910004)

	insertDocuments(t, index, courseID, []extract.Document{
		testDocument(extract.TypeThread, 42, 0),
	})

	require.NoError(t, index.DeleteCourse(ctx, courseID))

	// The namespace is gone; a stats scan over it finds nothing.
	stats := index.CourseStats(ctx, courseID)
	assert.Zero(t, stats.Total)
}

func TestCourseStatsSpansScrollPages(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()
	courseID := int64(910006)
	defer index.DeleteCourse(ctx, courseID)

	// More than one scroll page so the count crosses page boundaries.
	docs := make([]extract.Document, 0, 150)
	for i := int64(1); i <= 150; i++ {
		docs = append(docs, testDocument(extract.TypeThread, i, 0))
	}
	insertDocuments(t, index, courseID, docs)

	time.Sleep(100 * time.Millisecond)

	stats := index.CourseStats(ctx, courseID)
	assert.Equal(t, 150, stats.Total, "boundary points must not be counted twice")
	assert.Equal(t, 150, stats.ThreadCount)
}

func TestCourseStatsClassifiesFamilies(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()
	courseID := int64(910005)
	defer index.DeleteCourse(ctx, courseID)

	insertDocuments(t, index, courseID, []extract.Document{
		testDocument(extract.TypeThread, 1, 0),
		testDocument(extract.TypeThread, 2, 0),
		testDocument(extract.TypeAnswer, 1, 10),
		testDocument(extract.TypeComment, 1, 11),
		testDocument(extract.TypeComment, 2, 12),
		testDocument(extract.TypeComment, 2, 13),
	})

	time.Sleep(100 * time.Millisecond)

	stats := index.CourseStats(ctx, courseID)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 2, stats.ThreadCount)
	assert.Equal(t, 1, stats.AnswerCount)
	assert.Equal(t, 3, stats.CommentCount)
}
