package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// Model is the OpenAI embedding model for discussion content.
	Model = "text-embedding-3-small"

	// Dimension is the vector size produced by Model. Must match the
	// vector store's collection configuration.
	Dimension = 1536

	// DefaultBatchSize balances requests-per-minute against tokens-per-
	// minute limits. Discussion posts are short, so large batches are safe.
	DefaultBatchSize = 500
)

// Embedder generates embeddings for document text in batches, retrying
// rate-limited requests with exponential backoff.
type Embedder struct {
	client    *Client
	batchSize int
}

// NewEmbedder creates an Embedder. A batchSize of 0 uses DefaultBatchSize.
func NewEmbedder(client *Client, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{client: client, batchSize: batchSize}
}

// Embed generates one embedding per input text, preserving order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var all [][]float32

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))

		vectors, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", i, end, err)
		}
		all = append(all, vectors...)
	}

	return all, nil
}

// embedBatch sends one embedding request, retrying on 429. Other API errors
// are permanent and fail immediately.
func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := e.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: Model,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vectors[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return vectors, err
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 narrows the API's float64 vectors for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
