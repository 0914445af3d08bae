package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomehq/tome/internal/config"
	"github.com/tomehq/tome/internal/metrics"
)

type captureRecorder struct {
	mu    sync.Mutex
	calls []metrics.ModelCall
}

func (r *captureRecorder) Record(call metrics.ModelCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *captureRecorder) last(t *testing.T) metrics.ModelCall {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		t.Fatal("no model calls recorded")
	}
	return r.calls[len(r.calls)-1]
}

func newTestClient(baseURL string, rec Recorder) *Client {
	return &Client{
		baseURL:        baseURL,
		apiKey:         "test-key",
		chatModel:      "test-model",
		embeddingModel: "text-embedding-3-small",
		embeddingDim:   4,
		http:           &http.Client{Timeout: 5 * time.Second},
		limiter:        NewRateLimiter(1000),
		maxRetries:     3,
		retryDelay:     time.Millisecond,
		recorder:       rec,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func chatServerReply(content string) map[string]any {
	return map[string]any{
		"id":    "test-id",
		"model": "test-model",
		"choices": []map[string]any{
			{
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     10,
			"completion_tokens": 8,
			"total_tokens":      18,
		},
	}
}

func TestClient_GenerateStructuredSummary(t *testing.T) {
	t.Run("valid output", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Method != http.MethodPost {
				t.Errorf("unexpected method: %s", r.Method)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}
			var req chatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
				t.Error("expected json_object response format")
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(chatServerReply(`{"mainIdea":"Compounding wins","keyConcepts":["small habits"]}`))
		}))
		defer server.Close()

		rec := &captureRecorder{}
		client := newTestClient(server.URL, rec)

		fields, err := client.GenerateStructuredSummary(context.Background(), SummaryRequest{
			Meta:  Meta{WorkID: "w1", ChapterID: "c1", Stage: "analysis"},
			Title: "Chapter One",
			Text:  "chapter text",
		})
		if err != nil {
			t.Fatalf("GenerateStructuredSummary() error = %v", err)
		}
		if fields.MainIdea != "Compounding wins" {
			t.Errorf("MainIdea = %q", fields.MainIdea)
		}
		if len(fields.KeyConcepts) != 1 || fields.KeyConcepts[0] != "small habits" {
			t.Errorf("KeyConcepts = %v", fields.KeyConcepts)
		}

		call := rec.last(t)
		if !call.Success {
			t.Error("expected recorded success")
		}
		if call.Operation != "summary" {
			t.Errorf("Operation = %q", call.Operation)
		}
		if call.TotalTokens != 18 {
			t.Errorf("TotalTokens = %d, want 18", call.TotalTokens)
		}
		if call.WorkID != "w1" || call.ChapterID != "c1" {
			t.Errorf("attribution = %q/%q", call.WorkID, call.ChapterID)
		}
	})

	t.Run("code fenced output", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			content := "```json\n{\"mainIdea\":\"Fenced\",\"keyConcepts\":[]}\n```"
			json.NewEncoder(w).Encode(chatServerReply(content))
		}))
		defer server.Close()

		client := newTestClient(server.URL, nil)
		fields, err := client.GenerateStructuredSummary(context.Background(), SummaryRequest{Title: "Ch"})
		if err != nil {
			t.Fatalf("GenerateStructuredSummary() error = %v", err)
		}
		if fields.MainIdea != "Fenced" {
			t.Errorf("MainIdea = %q", fields.MainIdea)
		}
	})

	t.Run("malformed output", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(chatServerReply("sorry, I cannot help with that"))
		}))
		defer server.Close()

		rec := &captureRecorder{}
		client := newTestClient(server.URL, rec)

		_, err := client.GenerateStructuredSummary(context.Background(), SummaryRequest{Title: "Ch"})
		if !errors.Is(err, ErrMalformedOutput) {
			t.Fatalf("error = %v, want ErrMalformedOutput", err)
		}

		call := rec.last(t)
		if call.Success {
			t.Error("expected recorded failure")
		}
		if call.ErrorType != "malformed_output" {
			t.Errorf("ErrorType = %q", call.ErrorType)
		}
	})

	t.Run("schema violation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Parseable JSON missing the required mainIdea field.
			json.NewEncoder(w).Encode(chatServerReply(`{"keyConcepts":["x"]}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL, nil)
		_, err := client.GenerateStructuredSummary(context.Background(), SummaryRequest{Title: "Ch"})
		if !errors.Is(err, ErrMalformedOutput) {
			t.Fatalf("error = %v, want ErrMalformedOutput", err)
		}
	})
}

func TestClient_RetryOnServerError(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			http.Error(w, "upstream overloaded", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(chatServerReply(`{"related":true,"reason":"same idea","confidence":0.9}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	verdict, err := client.ExplainLink(context.Background(), LinkRequest{
		Source:    NoteRef{ID: "n1", Title: "A"},
		Candidate: NoteRef{ID: "n2", Title: "B"},
	})
	if err != nil {
		t.Fatalf("ExplainLink() error = %v", err)
	}
	if !verdict.Related || verdict.Confidence != 0.9 {
		t.Errorf("verdict = %+v", verdict)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
}

func TestClient_RetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	_, err := client.GenerateOverview(context.Background(), OverviewRequest{Title: "Ch", Text: "text"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestClient_GenerateOverviewStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if !req.Stream {
			t.Error("expected stream request")
		}
		if req.StreamOptions == nil || !req.StreamOptions.IncludeUsage {
			t.Error("expected include_usage stream option")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		chunks := []string{
			`{"model":"test-model","choices":[{"delta":{"content":"Hello"}}]}`,
			`{"choices":[{"delta":{"content":" world"}}]}`,
			`{"choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
		}
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	rec := &captureRecorder{}
	client := newTestClient(server.URL, rec)

	var snapshots []string
	overview, err := client.GenerateOverview(context.Background(), OverviewRequest{
		Meta:    Meta{WorkID: "w1", ChapterID: "c1", Stage: "overview"},
		Title:   "Chapter One",
		Text:    "text",
		OnToken: func(cumulative string) { snapshots = append(snapshots, cumulative) },
	})
	if err != nil {
		t.Fatalf("GenerateOverview() error = %v", err)
	}
	if overview != "Hello world" {
		t.Errorf("overview = %q", overview)
	}
	if len(snapshots) != 2 || snapshots[0] != "Hello" || snapshots[1] != "Hello world" {
		t.Errorf("snapshots = %v", snapshots)
	}

	call := rec.last(t)
	if call.Operation != "overview" || !call.Success {
		t.Errorf("recorded call = %+v", call)
	}
	if call.TotalTokens != 7 {
		t.Errorf("TotalTokens = %d, want 7", call.TotalTokens)
	}
}

func TestClient_AssignFolders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := `{"assignments":[{"noteId":"n1","folder":"Habits"},{"noteId":"n2","folder":"Strategy"},{"noteId":"","folder":"Habits"}]}`
		json.NewEncoder(w).Encode(chatServerReply(content))
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	assigned, err := client.AssignFolders(context.Background(), AssignRequest{
		Notes:    []NoteRef{{ID: "n1", Title: "A"}, {ID: "n2", Title: "B"}},
		Taxonomy: []string{"Habits", "Strategy"},
	})
	if err != nil {
		t.Fatalf("AssignFolders() error = %v", err)
	}
	if len(assigned) != 2 {
		t.Fatalf("assigned %d notes, want 2", len(assigned))
	}
	if assigned["n1"] != "Habits" || assigned["n2"] != "Strategy" {
		t.Errorf("assignments = %v", assigned)
	}
}

func TestClient_ProposeFolderNames(t *testing.T) {
	t.Run("trims blanks", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(chatServerReply(`{"folders":["Habits","  ","Strategy"]}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL, nil)
		names, err := client.ProposeFolderNames(context.Background(), []string{"t1", "t2"})
		if err != nil {
			t.Fatalf("ProposeFolderNames() error = %v", err)
		}
		if len(names) != 2 || names[0] != "Habits" || names[1] != "Strategy" {
			t.Errorf("names = %v", names)
		}
	})

	t.Run("all blank is malformed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(chatServerReply(`{"folders":[" "]}`))
		}))
		defer server.Close()

		client := newTestClient(server.URL, nil)
		_, err := client.ProposeFolderNames(context.Background(), []string{"t1"})
		if !errors.Is(err, ErrMalformedOutput) {
			t.Fatalf("error = %v, want ErrMalformedOutput", err)
		}
	})
}

func TestClient_ContextCancellation(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.GenerateOverview(ctx, OverviewRequest{Title: "Ch", Text: "text"})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestClient_Embed(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := map[string]any{
				"object": "list",
				"data": []map[string]any{
					{"object": "embedding", "index": 0, "embedding": []float64{0.1, 0.2, 0.3, 0.4}},
				},
				"model": "text-embedding-3-small",
				"usage": map[string]int{"prompt_tokens": 3, "total_tokens": 3},
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		rec := &captureRecorder{}
		client := NewClient(config.GatewayConfig{
			BaseURL:      server.URL,
			APIKey:       "test-key",
			EmbeddingDim: 4,
			RateLimit:    1000,
		}, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))

		vec, err := client.Embed(context.Background(), EmbedRequest{Text: "hello"})
		if err != nil {
			t.Fatalf("Embed() error = %v", err)
		}
		if len(vec) != 4 {
			t.Fatalf("len(vec) = %d, want 4", len(vec))
		}
		if vec[0] != 0.1 || vec[3] != 0.4 {
			t.Errorf("vec = %v", vec)
		}

		call := rec.last(t)
		if call.Operation != "embedding" || !call.Success {
			t.Errorf("recorded call = %+v", call)
		}
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := map[string]any{
				"object": "list",
				"data": []map[string]any{
					{"object": "embedding", "index": 0, "embedding": []float64{0.1, 0.2}},
				},
				"model": "text-embedding-3-small",
				"usage": map[string]int{"prompt_tokens": 3, "total_tokens": 3},
			}
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		rec := &captureRecorder{}
		client := NewClient(config.GatewayConfig{
			BaseURL:      server.URL,
			APIKey:       "test-key",
			EmbeddingDim: 4,
			RateLimit:    1000,
		}, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))

		_, err := client.Embed(context.Background(), EmbedRequest{Text: "hello"})
		if err == nil {
			t.Fatal("expected dimension mismatch error")
		}
		if call := rec.last(t); call.ErrorType != "embedding_error" {
			t.Errorf("ErrorType = %q", call.ErrorType)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		client := newTestClient("http://unused", nil)
		if _, err := client.Embed(context.Background(), EmbedRequest{Text: "  "}); err == nil {
			t.Fatal("expected error for empty text")
		}
	})
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback string
		want     string
	}{
		{"nil", nil, "model_error", ""},
		{"canceled", context.Canceled, "model_error", "canceled"},
		{"deadline", context.DeadlineExceeded, "model_error", "canceled"},
		{"malformed", fmt.Errorf("decode: %w", ErrMalformedOutput), "model_error", "malformed_output"},
		{"other chat", errors.New("boom"), "model_error", "model_error"},
		{"other embed", errors.New("boom"), "embedding_error", "embedding_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorKind(tt.err, tt.fallback); got != tt.want {
				t.Errorf("errorKind() = %q, want %q", got, tt.want)
			}
		})
	}
}
