package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/studyloop/edsync/internal/embedding"
	"github.com/studyloop/edsync/internal/extract"
)

// Index is the namespace-scoped vector index client. Each course's vectors
// live in their own collection; no operation crosses namespaces.
type Index struct {
	client   *qdrant.Client
	embedder *embedding.Embedder
	logger   *slog.Logger
}

// NewIndex connects to Qdrant and verifies health with exponential backoff,
// failing fast if the store is unreachable.
func NewIndex(host string, port int, embedder *embedding.Embedder, logger *slog.Logger) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	ix := &Index{client: client, embedder: embedder, logger: logger}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(func() error {
		return ix.Health(context.Background())
	}, b); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return ix, nil
}

// Health performs a single health check against the store.
func (ix *Index) Health(ctx context.Context) error {
	result, err := ix.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// Close closes the underlying client connection.
func (ix *Index) Close() error {
	if ix.client != nil {
		return ix.client.Close()
	}
	return nil
}

// ensureNamespace creates the course collection if it does not exist.
// Idempotent.
func (ix *Index) ensureNamespace(ctx context.Context, courseID int64) error {
	name := CourseNamespace(courseID)

	collections, err := ix.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, existing := range collections {
		if existing == name {
			return nil
		}
	}

	err = ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     embedding.Dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}

	// Keyword index on type makes family filters cheap; thread_id is
	// integer-indexed for per-thread deletes.
	_, err = ix.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: name,
		FieldName:      "type",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("index type field: %w", err)
	}
	_, err = ix.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: name,
		FieldName:      "thread_id",
		FieldType:      qdrant.FieldType_FieldTypeInteger.Enum(),
	})
	if err != nil {
		return fmt.Errorf("index thread_id field: %w", err)
	}
	return nil
}

// pointID maps a deterministic document ID onto a Qdrant point ID. Qdrant
// only accepts UUIDs or integers, so the document ID is hashed into a v5
// UUID; the same source data always yields the same point.
func pointID(docID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String())
}

func payloadFor(doc extract.Document) map[string]any {
	return map[string]any{
		"doc_id":       doc.ID,
		"type":         doc.Metadata.Type,
		"course_id":    doc.Metadata.CourseID,
		"thread_id":    doc.Metadata.ThreadID,
		"comment_id":   doc.Metadata.CommentID,
		"content":      doc.Content,
		"preview":      doc.Metadata.PreviewText,
		"created_at":   doc.Metadata.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":   doc.Metadata.UpdatedAt.UTC().Format(time.RFC3339),
		"author_id":    doc.Metadata.AuthorID,
		"is_anonymous": doc.Metadata.IsAnonymous,
	}
}

// upsertWithRetry writes one chunk of points with exponential backoff.
func (ix *Index) upsertWithRetry(ctx context.Context, collection string, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
		})
		return err
	}, backoff.WithContext(b, ctx))
}

// UpsertBatch embeds and writes documents into the course namespace in
// fixed-size chunks. A chunk that fails to embed or write is recorded in
// the result's errors and does not abort the remaining chunks.
func (ix *Index) UpsertBatch(ctx context.Context, courseID int64, docs []extract.Document) (UpsertResult, error) {
	result := UpsertResult{}
	if len(docs) == 0 {
		return result, nil
	}

	if err := ix.ensureNamespace(ctx, courseID); err != nil {
		return result, err
	}
	collection := CourseNamespace(courseID)

	for i := 0; i < len(docs); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(docs))
		chunk := docs[i:end]

		texts := make([]string, len(chunk))
		for j, doc := range chunk {
			texts[j] = doc.Content
		}

		vectors, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("chunk %d-%d: embed: %v", i, end, err))
			continue
		}

		points := make([]*qdrant.PointStruct, len(chunk))
		for j, doc := range chunk {
			points[j] = &qdrant.PointStruct{
				Id:      pointID(doc.ID),
				Vectors: qdrant.NewVectors(vectors[j]...),
				Payload: qdrant.NewValueMap(payloadFor(doc)),
			}
		}

		if err := ix.upsertWithRetry(ctx, collection, points); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("chunk %d-%d: upsert: %v", i, end, err))
			continue
		}
		result.Upserted += len(chunk)
	}

	return result, nil
}

// Search runs a similarity query scoped to the course namespace.
func (ix *Index) Search(ctx context.Context, query string, courseID int64, opts SearchOptions) ([]SearchResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}

	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var filter *qdrant.Filter
	if opts.Type != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("type", opts.Type)},
		}
	}

	results, err := ix.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CourseNamespace(courseID),
		Query:          qdrant.NewQuery(vectors[0]...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query course %d: %w", courseID, err)
	}

	matches := make([]SearchResult, 0, len(results))
	for _, point := range results {
		payload := point.Payload
		matches = append(matches, SearchResult{
			DocumentID:  payload["doc_id"].GetStringValue(),
			Score:       float64(point.Score),
			Type:        payload["type"].GetStringValue(),
			ThreadID:    payload["thread_id"].GetIntegerValue(),
			PreviewText: payload["preview"].GetStringValue(),
			Content:     payload["content"].GetStringValue(),
		})
	}
	return matches, nil
}

// DeleteThread removes the thread, answer, and comment document families
// for one thread. Returns the number of points removed.
func (ix *Index) DeleteThread(ctx context.Context, courseID, threadID int64) (int, error) {
	collection := CourseNamespace(courseID)
	deleted := 0

	for _, family := range []string{extract.TypeThread, extract.TypeAnswer, extract.TypeComment} {
		filter := &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("type", family),
				qdrant.NewMatchInt("thread_id", threadID),
			},
		}

		count, err := ix.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: collection,
			Filter:         filter,
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			return deleted, fmt.Errorf("count %s documents: %w", family, err)
		}

		_, err = ix.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points:         qdrant.NewPointsSelectorFilter(filter),
		})
		if err != nil {
			return deleted, fmt.Errorf("delete %s documents: %w", family, err)
		}
		deleted += int(count)
	}

	return deleted, nil
}

// DeleteCourse drops the course's entire namespace. Irreversible; used only
// by forced full resync.
func (ix *Index) DeleteCourse(ctx context.Context, courseID int64) error {
	if err := ix.client.DeleteCollection(ctx, CourseNamespace(courseID)); err != nil {
		return fmt.Errorf("delete course %d namespace: %w", courseID, err)
	}
	return nil
}

// CourseStats scans the full namespace and classifies each point by its
// document ID prefix. Best-effort diagnostic: scan failures return zeroed
// stats rather than an error.
func (ix *Index) CourseStats(ctx context.Context, courseID int64) Stats {
	var stats Stats
	var offset *qdrant.PointId
	collection := CourseNamespace(courseID)
	pageSize := uint32(100)

	for {
		results, err := ix.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: collection,
			Limit:          qdrant.PtrOf(pageSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayloadInclude("doc_id"),
		})
		if err != nil {
			ix.logger.Warn("stats scan failed", "course_id", courseID, "error", err)
			return Stats{}
		}

		for _, point := range results {
			// The scroll offset is inclusive, so continuation pages lead
			// with the previous page's last point again.
			if offset != nil && point.Id.GetUuid() == offset.GetUuid() {
				continue
			}
			stats.Total++
			docID := point.Payload["doc_id"].GetStringValue()
			switch {
			case hasPrefix(docID, extract.TypeThread):
				stats.ThreadCount++
			case hasPrefix(docID, extract.TypeAnswer):
				stats.AnswerCount++
			case hasPrefix(docID, extract.TypeComment):
				stats.CommentCount++
			}
		}

		if uint32(len(results)) < pageSize {
			break
		}
		offset = results[len(results)-1].Id
	}

	return stats
}

func hasPrefix(docID, family string) bool {
	return len(docID) > len(family) && docID[:len(family)+1] == family+"_"
}
