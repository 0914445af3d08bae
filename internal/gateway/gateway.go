// Package gateway is the model surface the pipeline depends on: one chat
// model for every generation call and an embedding model for note vectors.
// The production client talks to any OpenAI-compatible endpoint; tests use
// the Mock.
package gateway

import (
	"context"
	"errors"

	"github.com/tomehq/tome/internal/metrics"
	"github.com/tomehq/tome/internal/types"
)

// ErrMalformedOutput marks structured model output that failed parsing or
// schema validation. The analysis handler retries on it.
var ErrMalformedOutput = errors.New("model returned malformed output")

// Meta attributes a call to pipeline state for the metrics records. All
// fields are optional.
type Meta struct {
	WorkID    string
	ChapterID string
	Stage     string
}

// OverviewRequest asks for the markdown chapter overview.
type OverviewRequest struct {
	Meta
	Title      string
	Text       string
	Kind       types.WorkKind
	SourceKind types.SourceKind
	// OnToken, when set, receives the cumulative overview text as it
	// streams. Implementations may coalesce tokens.
	OnToken func(cumulative string)
}

// SummaryRequest asks for the structured chapter fields.
type SummaryRequest struct {
	Meta
	Title string
	Text  string
	Kind  types.WorkKind
}

// SummaryFields is the structured half of a chapter summary.
type SummaryFields struct {
	MainIdea     string   `json:"mainIdea"`
	KeyConcepts  []string `json:"keyConcepts"`
	Examples     []string `json:"examples,omitempty"`
	MentalModels []string `json:"mentalModels,omitempty"`
	LifeLessons  []string `json:"lifeLessons,omitempty"`
}

// Usable mirrors the notes-stage readiness check: a summary with neither a
// main idea nor key concepts counts as malformed.
func (f *SummaryFields) Usable() bool {
	return f.MainIdea != "" || len(f.KeyConcepts) > 0
}

// NotesRequest asks for atomic notes extracted from a chapter summary.
type NotesRequest struct {
	Meta
	ChapterTitle string
	Summary      *types.Summary
	Kind         types.WorkKind
}

// NoteDraft is one generated atomic note before persistence.
type NoteDraft struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// AnalysisRequest asks for the work-level synthesis.
type AnalysisRequest struct {
	Meta
	WorkTitle  string
	Kind       types.WorkKind
	SourceKind types.SourceKind
	Summaries  []types.Summary
}

// AnalysisFields is the work-level synthesis payload.
type AnalysisFields struct {
	CoreThemes            []string `json:"coreThemes"`
	KeyTakeaways          []string `json:"keyTakeaways"`
	MentalModels          []string `json:"mentalModels,omitempty"`
	PracticalApplications []string `json:"practicalApplications,omitempty"`
}

// NoteRef is the slice of a note the folder and link prompts need.
type NoteRef struct {
	ID      string
	Title   string
	Content string
	Tags    []string
}

// AssignRequest maps a batch of notes onto a fixed folder taxonomy.
type AssignRequest struct {
	Meta
	Notes    []NoteRef
	Taxonomy []string
}

// LinkRequest asks whether two notes are conceptually related.
type LinkRequest struct {
	Meta
	Source    NoteRef
	Candidate NoteRef
}

// LinkVerdict is the link judgment for one candidate.
type LinkVerdict struct {
	Related    bool    `json:"related"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// EmbedRequest asks for the embedding vector of one text.
type EmbedRequest struct {
	Meta
	Text string
}

// Recorder receives one record per model call. *metrics.Recorder satisfies
// it; a nil Recorder disables recording.
type Recorder interface {
	Record(call metrics.ModelCall)
}

// Gateway is the full model contract consumed by the stage handlers.
type Gateway interface {
	// GenerateOverview produces the markdown chapter overview, streaming
	// cumulative text through req.OnToken when set.
	GenerateOverview(ctx context.Context, req OverviewRequest) (string, error)

	// GenerateStructuredSummary produces the structured chapter fields.
	// Output that fails parsing or validation surfaces as
	// ErrMalformedOutput.
	GenerateStructuredSummary(ctx context.Context, req SummaryRequest) (*SummaryFields, error)

	// GenerateAtomicNotes extracts atomic notes from a chapter summary.
	// An empty slice is a valid result.
	GenerateAtomicNotes(ctx context.Context, req NotesRequest) ([]NoteDraft, error)

	// GenerateOverallAnalysis synthesizes the work-level analysis from
	// every chapter summary.
	GenerateOverallAnalysis(ctx context.Context, req AnalysisRequest) (*AnalysisFields, error)

	// ProposeFolderNames asks for thematic folder names covering the
	// sampled note titles.
	ProposeFolderNames(ctx context.Context, titles []string) ([]string, error)

	// AssignFolders maps each note in the batch to one taxonomy name.
	// The result is keyed by note id; notes the model skipped are absent.
	AssignFolders(ctx context.Context, req AssignRequest) (map[string]string, error)

	// ExplainLink judges whether two notes are conceptually related.
	ExplainLink(ctx context.Context, req LinkRequest) (*LinkVerdict, error)

	// Embed returns the embedding vector for one text.
	Embed(ctx context.Context, req EmbedRequest) ([]float32, error)

	// Dimensions is the embedding vector length this gateway produces.
	Dimensions() int
}
