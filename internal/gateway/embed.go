package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"

	"github.com/tomehq/tome/internal/metrics"
)

// Embed returns the embedding vector for one text. Vectors of an unexpected
// length are rejected before they can reach the note index.
func (c *Client) Embed(ctx context.Context, req EmbedRequest) ([]float32, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("embed: empty text")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(req.Text),
		},
		Model: openai.EmbeddingModel(c.embeddingModel),
	}
	// Only third-generation models accept a dimensions override.
	if strings.HasPrefix(c.embeddingModel, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(c.embeddingDim))
	}

	started := time.Now()
	resp, err := c.sdk.Embeddings.New(ctx, params)
	latency := time.Since(started)
	if err != nil {
		err = mapEmbeddingError(err)
		c.recordEmbedding(req.Meta, nil, latency, err)
		return nil, err
	}
	if len(resp.Data) == 0 {
		err = fmt.Errorf("embed: response carried no vectors")
		c.recordEmbedding(req.Meta, resp, latency, err)
		return nil, err
	}

	raw := resp.Data[0].Embedding
	if len(raw) != c.embeddingDim {
		err = fmt.Errorf("embed: got %d dimensions, want %d", len(raw), c.embeddingDim)
		c.recordEmbedding(req.Meta, resp, latency, err)
		return nil, err
	}

	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	c.recordEmbedding(req.Meta, resp, latency, nil)
	return vec, nil
}

func (c *Client) recordEmbedding(meta Meta, resp *openai.CreateEmbeddingResponse, latency time.Duration, err error) {
	if c.recorder == nil {
		return
	}
	call := metrics.ModelCall{
		WorkID:    meta.WorkID,
		ChapterID: meta.ChapterID,
		Stage:     meta.Stage,
		Operation: opEmbedding,
		Model:     c.embeddingModel,
		LatencyMS: latency.Milliseconds(),
		Success:   err == nil,
	}
	if resp != nil {
		call.PromptTokens = int(resp.Usage.PromptTokens)
		call.TotalTokens = int(resp.Usage.TotalTokens)
	}
	if err != nil {
		call.ErrorType = errorKind(err, "embedding_error")
	}
	c.recorder.Record(call)
}

func mapEmbeddingError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("embedding request failed (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("embedding request failed (status %d)", apiErr.StatusCode)
	}
	return err
}
