package metrics

import (
	"math"
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	calls := []ModelCall{
		{Operation: "overview", TotalTokens: 100, PromptTokens: 60, CompletionTokens: 40, LatencyMS: 200, Success: true},
		{Operation: "overview", TotalTokens: 300, PromptTokens: 200, CompletionTokens: 100, LatencyMS: 400, Success: true},
		{Operation: "embedding", TotalTokens: 10, PromptTokens: 10, LatencyMS: 50, Success: true},
		{Operation: "summary", TotalTokens: 0, LatencyMS: 900, Success: false, ErrorType: "http_error"},
	}

	s := summarize(calls)

	if s.Calls != 4 {
		t.Errorf("Calls = %d, want 4", s.Calls)
	}
	if s.Failures != 1 {
		t.Errorf("Failures = %d, want 1", s.Failures)
	}
	if s.TotalTokens != 410 {
		t.Errorf("TotalTokens = %d, want 410", s.TotalTokens)
	}

	if len(s.Operations) != 3 {
		t.Fatalf("expected 3 operations, got %d", len(s.Operations))
	}
	// Sorted by name: embedding, overview, summary.
	if s.Operations[0].Operation != "embedding" || s.Operations[1].Operation != "overview" || s.Operations[2].Operation != "summary" {
		t.Fatalf("operations out of order: %v", s.Operations)
	}

	overview := s.Operations[1]
	if overview.Calls != 2 {
		t.Errorf("overview.Calls = %d, want 2", overview.Calls)
	}
	if overview.TotalTokens != 400 {
		t.Errorf("overview.TotalTokens = %d, want 400", overview.TotalTokens)
	}
	if math.Abs(overview.MeanLatencyMS-300) > 1e-9 {
		t.Errorf("overview.MeanLatencyMS = %v, want 300", overview.MeanLatencyMS)
	}

	sum := s.Operations[2]
	if sum.Failures != 1 {
		t.Errorf("summary.Failures = %d, want 1", sum.Failures)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := summarize(nil)
	if s.Calls != 0 || len(s.Operations) != 0 {
		t.Errorf("empty summarize = %+v", s)
	}
}

func TestModelCallToMap(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	call := ModelCall{
		ID:               "m1",
		WorkID:           "w1",
		Stage:            "analysis",
		Operation:        "summary",
		Model:            "gpt-4o-mini",
		PromptTokens:     10,
		CompletionTokens: 20,
		TotalTokens:      30,
		LatencyMS:        150,
		Success:          true,
		CreatedAt:        created,
	}

	m := call.ToMap()
	if m["id"] != "m1" || m["work_id"] != "w1" || m["operation"] != "summary" {
		t.Errorf("identity fields wrong: %v", m)
	}
	if m["created_at"] != "2025-06-01T12:00:00Z" {
		t.Errorf("created_at = %v", m["created_at"])
	}
	if _, ok := m["chapter_id"]; ok {
		t.Error("empty chapter_id should be omitted")
	}
	if _, ok := m["error_type"]; ok {
		t.Error("empty error_type should be omitted")
	}
}
