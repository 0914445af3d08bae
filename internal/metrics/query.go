package metrics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tomehq/tome/internal/defra"
)

// Query reads model calls back from DefraDB for the metrics endpoints.
type Query struct {
	client *defra.Client
}

// NewQuery returns a metrics query helper.
func NewQuery(client *defra.Client) *Query {
	return &Query{client: client}
}

var callFields = []string{
	"id", "work_id", "chapter_id", "stage", "operation", "model",
	"prompt_tokens", "completion_tokens", "total_tokens", "latency_ms",
	"success", "error_type", "created_at",
}

// List returns recorded calls, newest first. A non-empty workID filters to
// one work; limit 0 means no limit.
func (q *Query) List(ctx context.Context, workID string, limit int) ([]ModelCall, error) {
	qb := defra.NewQuery("ModelCall").
		Fields(callFields...).
		OrderBy("created_at", "DESC")
	if workID != "" {
		qb = qb.Filter("work_id", workID)
	}
	if limit > 0 {
		qb = qb.Limit(limit)
	}

	resp, err := qb.Execute(ctx, q.client)
	if err != nil {
		return nil, fmt.Errorf("failed to query model calls: %w", err)
	}

	raw, ok := resp.Data["ModelCall"].([]any)
	if !ok {
		return nil, nil
	}

	calls := make([]ModelCall, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		calls = append(calls, parseCall(m))
	}
	return calls, nil
}

// Summarize aggregates calls per operation and overall. A non-empty workID
// restricts the aggregate to one work.
func (q *Query) Summarize(ctx context.Context, workID string) (*Summary, error) {
	calls, err := q.List(ctx, workID, 0)
	if err != nil {
		return nil, err
	}
	return summarize(calls), nil
}

// summarize folds calls into per-operation stats. Pure so it can be tested
// without a store.
func summarize(calls []ModelCall) *Summary {
	s := &Summary{}
	byOp := make(map[string]*OperationStats)
	latencySums := make(map[string]int64)

	for _, c := range calls {
		s.Calls++
		s.TotalTokens += c.TotalTokens
		if !c.Success {
			s.Failures++
		}

		op, ok := byOp[c.Operation]
		if !ok {
			op = &OperationStats{Operation: c.Operation}
			byOp[c.Operation] = op
		}
		op.Calls++
		if !c.Success {
			op.Failures++
		}
		op.PromptTokens += c.PromptTokens
		op.CompletionTokens += c.CompletionTokens
		op.TotalTokens += c.TotalTokens
		latencySums[c.Operation] += c.LatencyMS
	}

	names := make([]string, 0, len(byOp))
	for name := range byOp {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		op := byOp[name]
		if op.Calls > 0 {
			op.MeanLatencyMS = float64(latencySums[name]) / float64(op.Calls)
		}
		s.Operations = append(s.Operations, *op)
	}
	return s
}

func parseCall(m map[string]any) ModelCall {
	c := ModelCall{}
	if v, ok := m["id"].(string); ok {
		c.ID = v
	}
	if v, ok := m["work_id"].(string); ok {
		c.WorkID = v
	}
	if v, ok := m["chapter_id"].(string); ok {
		c.ChapterID = v
	}
	if v, ok := m["stage"].(string); ok {
		c.Stage = v
	}
	if v, ok := m["operation"].(string); ok {
		c.Operation = v
	}
	if v, ok := m["model"].(string); ok {
		c.Model = v
	}
	if v, ok := m["prompt_tokens"].(float64); ok {
		c.PromptTokens = int(v)
	}
	if v, ok := m["completion_tokens"].(float64); ok {
		c.CompletionTokens = int(v)
	}
	if v, ok := m["total_tokens"].(float64); ok {
		c.TotalTokens = int(v)
	}
	if v, ok := m["latency_ms"].(float64); ok {
		c.LatencyMS = int64(v)
	}
	if v, ok := m["success"].(bool); ok {
		c.Success = v
	}
	if v, ok := m["error_type"].(string); ok {
		c.ErrorType = v
	}
	if v, ok := m["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			c.CreatedAt = t
		}
	}
	return c
}
