package types

import "time"

// Stage is one of the three per-chapter pipeline steps.
type Stage string

const (
	StageOverview Stage = "overview"
	StageAnalysis Stage = "analysis"
	StageNotes    Stage = "notes"
)

// ParseStage converts a string to a Stage. The boolean reports whether the
// string named a known stage.
func ParseStage(s string) (Stage, bool) {
	switch s {
	case "overview":
		return StageOverview, true
	case "analysis":
		return StageAnalysis, true
	case "notes":
		return StageNotes, true
	default:
		return "", false
	}
}

// Next returns the stage enqueued after this one completes, or false for the
// last stage in the chain.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageOverview:
		return StageAnalysis, true
	case StageAnalysis:
		return StageNotes, true
	default:
		return "", false
	}
}

// StageStatus is the lifecycle state of one stage on one chapter.
//
// Permitted transitions: pending→processing, processing→{completed,failed},
// failed→processing (explicit retry), skipped→processing (explicit
// regenerate), any→skipped (user action).
type StageStatus string

const (
	StatusPending    StageStatus = "pending"
	StatusProcessing StageStatus = "processing"
	StatusCompleted  StageStatus = "completed"
	StatusSkipped    StageStatus = "skipped"
	StatusFailed     StageStatus = "failed"
)

// Terminal reports whether the status is a terminal outcome.
func (s StageStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusSkipped || s == StatusFailed
}

// Satisfied reports whether the status satisfies a downstream stage's
// readiness check: completed and skipped predecessors both count.
func (s StageStatus) Satisfied() bool {
	return s == StatusCompleted || s == StatusSkipped
}

// Chapter is a contiguous unit of a work's text with three independently
// tracked stage statuses.
type Chapter struct {
	ID           string      `json:"id"`
	WorkID       string      `json:"workId"`
	ChapterIndex int         `json:"chapterIndex"`
	Title        string      `json:"title,omitempty"`
	RawText      string      `json:"rawText"`
	SummaryRef   string      `json:"summaryRef,omitempty"` // Summary document id, set on first overview write
	Overview     StageStatus `json:"overviewStatus"`
	Analysis     StageStatus `json:"analysisStatus"`
	Notes        StageStatus `json:"notesStatus"`
	LastError    string      `json:"lastError,omitempty"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// StageStatusOf returns the chapter's status for the given stage.
func (c *Chapter) StageStatusOf(stage Stage) StageStatus {
	switch stage {
	case StageOverview:
		return c.Overview
	case StageAnalysis:
		return c.Analysis
	case StageNotes:
		return c.Notes
	}
	return ""
}

// Done reports whether every stage is completed or skipped. A work's
// overall analysis runs only once all of its chapters are done.
func (c *Chapter) Done() bool {
	return c.Overview.Satisfied() && c.Analysis.Satisfied() && c.Notes.Satisfied()
}

// StageField returns the store field name holding the given stage's status.
func StageField(stage Stage) string {
	switch stage {
	case StageOverview:
		return "overview_status"
	case StageAnalysis:
		return "analysis_status"
	case StageNotes:
		return "notes_status"
	}
	return ""
}
