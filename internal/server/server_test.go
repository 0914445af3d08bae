package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomehq/tome/internal/broker"
	"github.com/tomehq/tome/internal/events"
	"github.com/tomehq/tome/internal/pipeline"
	"github.com/tomehq/tome/internal/server/endpoints"
	"github.com/tomehq/tome/internal/store"
	"github.com/tomehq/tome/internal/svcctx"
	"github.com/tomehq/tome/internal/types"
)

const sampleUpload = `Opening remarks before any heading.

# The Habit Loop

Cue, craving, response, reward.

## Make It Obvious

Design the environment instead of relying on willpower.
`

type rig struct {
	srv     *Server
	handler http.Handler
	store   *store.Memory
	broker  *broker.Memory
	hub     *events.Hub
}

func newRig(t *testing.T) *rig {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemory()
	br := broker.NewMemory()
	hub := events.NewHub()

	services := &svcctx.Services{
		Logger:   logger,
		Store:    st,
		Broker:   br,
		Hub:      hub,
		Commands: pipeline.NewCommands(st, br, logger),
	}

	srv, err := New(Config{Services: services})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &rig{srv: srv, handler: srv.Handler(), store: st, broker: br, hub: hub}
}

func (r *rig) do(t *testing.T, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func uploadBody(t *testing.T, filename, content string, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField %s: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func seedWork(t *testing.T, ctx context.Context, st store.Store, workID string, chapterIDs ...string) {
	t.Helper()
	now := time.Now().UTC()
	work := &types.Work{
		ID:         workID,
		Title:      "seeded work",
		Kind:       types.KindNonfiction,
		SourceKind: types.SourceOther,
		ChapterIDs: chapterIDs,
		Status:     types.WorkProcessing,
		CreatedAt:  now,
	}
	if err := st.SaveWork(ctx, work); err != nil {
		t.Fatalf("SaveWork: %v", err)
	}
	for i, id := range chapterIDs {
		ch := &types.Chapter{
			ID:           id,
			WorkID:       workID,
			ChapterIndex: i,
			Title:        "chapter",
			RawText:      "raw text",
			Overview:     types.StatusPending,
			Analysis:     types.StatusPending,
			Notes:        types.StatusPending,
			UpdatedAt:    now,
		}
		if err := st.SaveChapter(ctx, ch); err != nil {
			t.Fatalf("SaveChapter: %v", err)
		}
	}
}

func TestHealthRoute(t *testing.T) {
	r := newRig(t)

	rec := r.do(t, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp endpoints.HealthResponse
	decode(t, rec, &resp)
	if resp.Status != "ok" {
		t.Fatalf("status = %q, want ok", resp.Status)
	}
}

func TestRequireInitBlocksUninitialized(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(Config{Services: &svcctx.Services{Logger: logger, Hub: events.NewHub()}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/v1/works", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not fully initialized") {
		t.Fatalf("body = %q", rec.Body.String())
	}

	// Health never requires init.
	req = httptest.NewRequest("GET", "/health", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}

func TestListWorksEmpty(t *testing.T) {
	r := newRig(t)

	rec := r.do(t, "GET", "/api/v1/works", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp endpoints.ListWorksResponse
	decode(t, rec, &resp)
	if resp.Works == nil || len(resp.Works) != 0 {
		t.Fatalf("works = %#v, want empty non-nil slice", resp.Works)
	}
}

func TestIngestGetDelete(t *testing.T) {
	r := newRig(t)

	body, contentType := uploadBody(t, "habits.md", sampleUpload, map[string]string{"title": "Atomic Habits"})
	rec := r.do(t, "POST", "/api/v1/works", contentType, body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ingest status = %d: %s", rec.Code, rec.Body.String())
	}
	var ing endpoints.IngestResponse
	decode(t, rec, &ing)
	if ing.WorkID == "" || ing.Title != "Atomic Habits" || ing.Chapters != 3 {
		t.Fatalf("ingest response = %+v", ing)
	}
	if ing.Started {
		t.Fatal("started without start field")
	}

	rec = r.do(t, "GET", "/api/v1/works/"+ing.WorkID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d: %s", rec.Code, rec.Body.String())
	}
	var detail endpoints.WorkDetail
	decode(t, rec, &detail)
	if detail.Work.Title != "Atomic Habits" || len(detail.Chapters) != 3 {
		t.Fatalf("detail = %+v", detail)
	}
	if detail.Chapters[0].Title != "Introduction" {
		t.Fatalf("first chapter = %q, want Introduction", detail.Chapters[0].Title)
	}

	// Same bytes again is a duplicate.
	body, contentType = uploadBody(t, "habits-copy.md", sampleUpload, nil)
	rec = r.do(t, "POST", "/api/v1/works", contentType, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409: %s", rec.Code, rec.Body.String())
	}

	rec = r.do(t, "DELETE", "/api/v1/works/"+ing.WorkID, "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = r.do(t, "GET", "/api/v1/works/"+ing.WorkID, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestIngestWithStartEnqueues(t *testing.T) {
	r := newRig(t)

	body, contentType := uploadBody(t, "habits.md", sampleUpload, map[string]string{"start": "true"})
	rec := r.do(t, "POST", "/api/v1/works", contentType, body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ingest status = %d: %s", rec.Code, rec.Body.String())
	}
	var ing endpoints.IngestResponse
	decode(t, rec, &ing)
	if !ing.Started {
		t.Fatal("start=true was not honored")
	}
	if got := r.broker.Pending(); got != ing.Chapters {
		t.Fatalf("pending jobs = %d, want %d", got, ing.Chapters)
	}
}

func TestGenerateStageRoute(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	seedWork(t, ctx, r.store, "w1", "c1")

	rec := r.do(t, "POST", "/api/v1/chapters/c1/generate", "application/json",
		strings.NewReader(`{"stage":"overview"}`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := r.broker.Pending(); got != 1 {
		t.Fatalf("pending jobs = %d, want 1", got)
	}
	ch, err := r.store.GetChapter(ctx, "c1")
	if err != nil {
		t.Fatalf("GetChapter: %v", err)
	}
	if ch.Overview != types.StatusProcessing {
		t.Fatalf("overview = %s, want processing", ch.Overview)
	}

	rec = r.do(t, "POST", "/api/v1/chapters/c1/generate", "application/json",
		strings.NewReader(`{"stage":"typo"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad stage status = %d, want 400", rec.Code)
	}

	rec = r.do(t, "POST", "/api/v1/chapters/missing/generate", "application/json",
		strings.NewReader(`{"stage":"overview"}`))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing chapter status = %d, want 404", rec.Code)
	}
}

func TestStatusRoute(t *testing.T) {
	r := newRig(t)

	rec := r.do(t, "GET", "/api/v1/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp endpoints.StatusResponse
	decode(t, rec, &resp)
	if resp.Server != "running" {
		t.Fatalf("server = %q", resp.Server)
	}
	if resp.Defra.Container != "unmanaged" {
		t.Fatalf("container = %q, want unmanaged", resp.Defra.Container)
	}
	if resp.Broker.Health != "healthy" {
		t.Fatalf("broker = %q, want healthy", resp.Broker.Health)
	}
}

func TestWorkEventsStream(t *testing.T) {
	ctx := context.Background()
	r := newRig(t)
	seedWork(t, ctx, r.store, "w1", "c1")

	ts := httptest.NewServer(r.handler)
	defer ts.Close()

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, "GET", ts.URL+"/api/v1/works/w1/events", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// Headers received means the subscription is registered. An event for
	// another work must not reach this stream; the matching one must.
	r.hub.Publish(events.StageStatus("other", "cx", types.StageOverview, types.StatusProcessing))
	r.hub.Publish(events.StageStatus("w1", "c1", types.StageOverview, types.StatusProcessing))

	var eventLine, dataLine string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			eventLine = line
		}
		if strings.HasPrefix(line, "data: ") {
			dataLine = line
			break
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if eventLine != "event: stageStatus" {
		t.Fatalf("event line = %q", eventLine)
	}
	if !strings.Contains(dataLine, `"chapterId":"c1"`) {
		t.Fatalf("data line = %q, want c1 event", dataLine)
	}
	if strings.Contains(dataLine, `"workId":"other"`) {
		t.Fatal("received event for another work")
	}
}

func TestWorkEventsMissingWork(t *testing.T) {
	r := newRig(t)

	rec := r.do(t, "GET", "/api/v1/works/missing/events", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPumpEventsForwardsToHub(t *testing.T) {
	r := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, unsubscribe := r.hub.Subscribe("w1")
	defer unsubscribe()

	go r.srv.pumpEvents(ctx)

	// Publishing before the consumer registers is dropped by the fanout,
	// so retry until the event arrives.
	body, err := events.StageStatus("w1", "c1", types.StageNotes, types.StatusCompleted).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	deadline := time.After(5 * time.Second)
	for {
		if err := r.broker.PublishEvent(ctx, body); err != nil {
			t.Fatalf("PublishEvent: %v", err)
		}
		select {
		case ev := <-ch:
			if ev.Type != events.TypeStageStatus || ev.ChapterID != "c1" {
				t.Fatalf("event = %+v", ev)
			}
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("event never reached the hub")
		}
	}
}

func TestPumpEventsDropsGarbage(t *testing.T) {
	r := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, unsubscribe := r.hub.Subscribe("")
	defer unsubscribe()

	go r.srv.pumpEvents(ctx)
	time.Sleep(20 * time.Millisecond)

	if err := r.broker.PublishEvent(ctx, []byte("{not json")); err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}

	select {
	case ev := <-ch:
		t.Fatalf("garbage produced event %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
