package gateway

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync/atomic"
	"time"

	"github.com/tomehq/tome/internal/types"
)

// Mock implements Gateway for tests. The zero value returns canned output
// for every operation; set a per-operation func to override one of them.
// Call counters make retry behavior observable.
type Mock struct {
	OverviewFn    func(ctx context.Context, req OverviewRequest) (string, error)
	SummaryFn     func(ctx context.Context, req SummaryRequest) (*SummaryFields, error)
	NotesFn       func(ctx context.Context, req NotesRequest) ([]NoteDraft, error)
	AnalysisFn    func(ctx context.Context, req AnalysisRequest) (*AnalysisFields, error)
	FolderNamesFn func(ctx context.Context, titles []string) ([]string, error)
	AssignFn      func(ctx context.Context, req AssignRequest) (map[string]string, error)
	LinkFn        func(ctx context.Context, req LinkRequest) (*LinkVerdict, error)
	EmbedFn       func(ctx context.Context, req EmbedRequest) ([]float32, error)

	// Dim is the embedding length, 4 when unset.
	Dim int
	// Latency delays every call, honoring context cancellation.
	Latency time.Duration

	OverviewCalls    atomic.Int64
	SummaryCalls     atomic.Int64
	NotesCalls       atomic.Int64
	AnalysisCalls    atomic.Int64
	FolderNamesCalls atomic.Int64
	AssignCalls      atomic.Int64
	LinkCalls        atomic.Int64
	EmbedCalls       atomic.Int64
}

var _ Gateway = (*Mock)(nil)

// NewMock creates a mock with canned defaults.
func NewMock() *Mock {
	return &Mock{Dim: 4}
}

func (m *Mock) GenerateOverview(ctx context.Context, req OverviewRequest) (string, error) {
	m.OverviewCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	if m.OverviewFn != nil {
		return m.OverviewFn(ctx, req)
	}

	overview := fmt.Sprintf("## %s\n\nMock overview of the chapter.", req.Title)
	if req.OnToken != nil {
		half := len(overview) / 2
		req.OnToken(overview[:half])
		req.OnToken(overview)
	}
	return overview, nil
}

func (m *Mock) GenerateStructuredSummary(ctx context.Context, req SummaryRequest) (*SummaryFields, error) {
	m.SummaryCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.SummaryFn != nil {
		return m.SummaryFn(ctx, req)
	}
	return &SummaryFields{
		MainIdea:    "Main idea of " + req.Title,
		KeyConcepts: []string{"first concept", "second concept"},
		LifeLessons: []string{"a lesson"},
	}, nil
}

func (m *Mock) GenerateAtomicNotes(ctx context.Context, req NotesRequest) ([]NoteDraft, error) {
	m.NotesCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.NotesFn != nil {
		return m.NotesFn(ctx, req)
	}

	drafts := []NoteDraft{
		{
			Title:   fmt.Sprintf("Core claim of %s", req.ChapterTitle),
			Content: "A self-contained statement of the chapter's central idea.",
			Tags:    []string{"core"},
		},
	}
	if req.Summary != nil {
		for _, concept := range req.Summary.KeyConcepts {
			drafts = append(drafts, NoteDraft{
				Title:   concept,
				Content: fmt.Sprintf("An atomic note developing %q.", concept),
			})
		}
	}
	return drafts, nil
}

func (m *Mock) GenerateOverallAnalysis(ctx context.Context, req AnalysisRequest) (*AnalysisFields, error) {
	m.AnalysisCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.AnalysisFn != nil {
		return m.AnalysisFn(ctx, req)
	}
	return &AnalysisFields{
		CoreThemes:   []string{"theme across " + req.WorkTitle},
		KeyTakeaways: []string{fmt.Sprintf("takeaway from %d chapters", len(req.Summaries))},
	}, nil
}

func (m *Mock) ProposeFolderNames(ctx context.Context, titles []string) ([]string, error) {
	m.FolderNamesCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.FolderNamesFn != nil {
		return m.FolderNamesFn(ctx, titles)
	}
	return []string{
		"Decision Making", "Systems Thinking", "Habits", "Learning",
		"Psychology", "Strategy", "Communication", "Craft",
	}, nil
}

func (m *Mock) AssignFolders(ctx context.Context, req AssignRequest) (map[string]string, error) {
	m.AssignCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.AssignFn != nil {
		return m.AssignFn(ctx, req)
	}

	folder := types.Uncategorized
	if len(req.Taxonomy) > 0 {
		folder = req.Taxonomy[0]
	}
	assigned := make(map[string]string, len(req.Notes))
	for _, note := range req.Notes {
		assigned[note.ID] = folder
	}
	return assigned, nil
}

func (m *Mock) ExplainLink(ctx context.Context, req LinkRequest) (*LinkVerdict, error) {
	m.LinkCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.LinkFn != nil {
		return m.LinkFn(ctx, req)
	}
	// Unrelated by default so tests opt in to graph edges.
	return &LinkVerdict{Related: false, Confidence: 0.1}, nil
}

func (m *Mock) Embed(ctx context.Context, req EmbedRequest) ([]float32, error) {
	m.EmbedCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.EmbedFn != nil {
		return m.EmbedFn(ctx, req)
	}

	// Deterministic per-text vector so similarity is stable across runs.
	dim := m.Dimensions()
	vec := make([]float32, dim)
	for i := range vec {
		h := fnv.New32a()
		fmt.Fprintf(h, "%s|%d", req.Text, i)
		vec[i] = float32(h.Sum32()%1000)/1000.0 - 0.5
	}
	return vec, nil
}

func (m *Mock) Dimensions() int {
	if m.Dim <= 0 {
		return 4
	}
	return m.Dim
}

func (m *Mock) wait(ctx context.Context) error {
	if m.Latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(m.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
