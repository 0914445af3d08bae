// Package metrics records model-call telemetry and aggregates it for the
// metrics endpoints. Records are observability only; nothing in the
// pipeline reads them back.
package metrics

import "time"

// ModelCall is one gateway invocation: a chat generation or an embedding.
type ModelCall struct {
	ID               string    `json:"id"`
	WorkID           string    `json:"workId,omitempty"`
	ChapterID        string    `json:"chapterId,omitempty"`
	Stage            string    `json:"stage,omitempty"`
	Operation        string    `json:"operation"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"promptTokens"`
	CompletionTokens int       `json:"completionTokens"`
	TotalTokens      int       `json:"totalTokens"`
	LatencyMS        int64     `json:"latencyMs"`
	Success          bool      `json:"success"`
	ErrorType        string    `json:"errorType,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// ToMap renders the call as a DefraDB document.
func (c *ModelCall) ToMap() map[string]any {
	m := map[string]any{
		"id":                c.ID,
		"operation":         c.Operation,
		"model":             c.Model,
		"prompt_tokens":     c.PromptTokens,
		"completion_tokens": c.CompletionTokens,
		"total_tokens":      c.TotalTokens,
		"latency_ms":        int(c.LatencyMS),
		"success":           c.Success,
		"created_at":        c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.WorkID != "" {
		m["work_id"] = c.WorkID
	}
	if c.ChapterID != "" {
		m["chapter_id"] = c.ChapterID
	}
	if c.Stage != "" {
		m["stage"] = c.Stage
	}
	if c.ErrorType != "" {
		m["error_type"] = c.ErrorType
	}
	return m
}

// OperationStats aggregates the calls of one operation.
type OperationStats struct {
	Operation        string  `json:"operation"`
	Calls            int     `json:"calls"`
	Failures         int     `json:"failures"`
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	TotalTokens      int     `json:"totalTokens"`
	MeanLatencyMS    float64 `json:"meanLatencyMs"`
}

// Summary is the aggregate view served by the metrics endpoint.
type Summary struct {
	Calls       int              `json:"calls"`
	Failures    int              `json:"failures"`
	TotalTokens int              `json:"totalTokens"`
	Operations  []OperationStats `json:"operations"`
}
