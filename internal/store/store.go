// Package store defines the persistence contract for tome entities and
// provides two implementations: a DefraDB-backed adapter and an in-memory
// fake for tests.
package store

import (
	"context"
	"errors"

	"github.com/tomehq/tome/internal/types"
)

// ErrNotFound is returned when an entity does not exist. Stage handlers
// treat a missing work as the cancellation signal: deleting the work is
// how users cancel in-flight processing.
var ErrNotFound = errors.New("not found")

// ChapterPatch is a field-level partial update for a chapter. Nil fields
// are left untouched; the store stamps updated_at on every patch.
type ChapterPatch struct {
	Overview   *types.StageStatus
	Analysis   *types.StageStatus
	Notes      *types.StageStatus
	LastError  *string
	SummaryRef *string
}

// StagePatch returns a patch setting a single stage's status.
func StagePatch(stage types.Stage, status types.StageStatus) ChapterPatch {
	var p ChapterPatch
	switch stage {
	case types.StageOverview:
		p.Overview = &status
	case types.StageAnalysis:
		p.Analysis = &status
	case types.StageNotes:
		p.Notes = &status
	}
	return p
}

// WithLastError returns a copy of the patch that also sets last_error.
// Pass an empty string to clear a stale error on retry.
func (p ChapterPatch) WithLastError(msg string) ChapterPatch {
	p.LastError = &msg
	return p
}

// Empty reports whether the patch would change nothing.
func (p ChapterPatch) Empty() bool {
	return p.Overview == nil && p.Analysis == nil && p.Notes == nil &&
		p.LastError == nil && p.SummaryRef == nil
}

// NotesPage is one page of a paginated note listing.
type NotesPage struct {
	Notes []types.Note `json:"notes"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

// DefaultNotesLimit is the page size used when the caller passes limit <= 0.
const DefaultNotesLimit = 50

// Store is the persistence contract shared by the API and worker
// processes. All Get* methods return ErrNotFound for missing entities,
// including the Graph and FolderSet singletons.
type Store interface {
	// Works
	GetWork(ctx context.Context, id string) (*types.Work, error)
	SaveWork(ctx context.Context, w *types.Work) error
	ListWorks(ctx context.Context) ([]types.Work, error)
	// FindWorkByHash looks a work up by its source content hash (ingest dedup).
	FindWorkByHash(ctx context.Context, hash string) (*types.Work, error)
	// DeleteWork cascades: chapters, summaries, notes (with their graph
	// nodes and incident edges), the work-level analysis, then the work.
	DeleteWork(ctx context.Context, id string) error

	// Chapters
	GetChapter(ctx context.Context, id string) (*types.Chapter, error)
	SaveChapter(ctx context.Context, c *types.Chapter) error
	// UpdateChapter applies a field-level patch and returns the new document.
	UpdateChapter(ctx context.Context, id string, patch ChapterPatch) (*types.Chapter, error)
	ListChaptersByWork(ctx context.Context, workID string) ([]types.Chapter, error)

	// Summaries
	GetSummary(ctx context.Context, id string) (*types.Summary, error)
	GetSummaryByChapter(ctx context.Context, chapterID string) (*types.Summary, error)
	SaveSummary(ctx context.Context, s *types.Summary) error

	// Notes
	GetNote(ctx context.Context, id string) (*types.Note, error)
	SaveNote(ctx context.Context, n *types.Note) error
	// ListNotes returns a page of notes ordered newest-first. A non-empty
	// search matches title or content substring, case-insensitive.
	ListNotes(ctx context.Context, page, limit int, search string) (*NotesPage, error)
	ListNotesByWork(ctx context.Context, workID string) ([]types.Note, error)
	// ListAllNotes returns the whole corpus; the linker builds its
	// similarity index from it.
	ListAllNotes(ctx context.Context) ([]types.Note, error)
	// DeleteNotesByChapter removes a chapter's notes and prunes their graph
	// nodes and incident edges. The notes handler calls it before rebuilding.
	DeleteNotesByChapter(ctx context.Context, workID, chapterID string) error

	// Analysis (one per work)
	GetAnalysis(ctx context.Context, workID string) (*types.Analysis, error)
	SaveAnalysis(ctx context.Context, a *types.Analysis) error

	// Graph singleton
	GetGraph(ctx context.Context) (*types.GraphData, error)
	SaveGraph(ctx context.Context, g *types.GraphData) error
	// MutateGraph runs fn on the current graph (empty when absent) and
	// persists the result, serialized against all other graph mutators.
	MutateGraph(ctx context.Context, fn func(*types.GraphData) error) (*types.GraphData, error)

	// Folder singleton
	GetFolders(ctx context.Context) (*types.FolderSet, error)
	SaveFolders(ctx context.Context, fs *types.FolderSet) error

	// Job records (observability only, broker is the source of truth)
	SaveJobRecord(ctx context.Context, r *types.JobRecord) error
	UpdateJobRecord(ctx context.Context, id string, status types.JobRecordStatus, errMsg string) error
	ListJobRecords(ctx context.Context, limit int) ([]types.JobRecord, error)
}
