// Package types provides shared entity types used across multiple packages.
// This package has no dependencies on other tome packages to avoid import cycles.
package types

import "time"

// WorkKind classifies the source material for prompt selection.
type WorkKind string

const (
	KindFiction    WorkKind = "fiction"
	KindNonfiction WorkKind = "nonfiction"
)

// ParseWorkKind converts a string to a WorkKind.
// Returns KindNonfiction if the string is not recognized.
func ParseWorkKind(s string) WorkKind {
	switch s {
	case "fiction":
		return KindFiction
	case "nonfiction":
		return KindNonfiction
	default:
		return KindNonfiction
	}
}

// SourceKind records where the work's text came from.
type SourceKind string

const (
	SourcePDF     SourceKind = "pdf"
	SourceYouTube SourceKind = "youtube"
	SourceBlog    SourceKind = "blog"
	SourceOther   SourceKind = "other"
)

// ParseSourceKind converts a string to a SourceKind.
// Returns SourceOther if the string is not recognized.
func ParseSourceKind(s string) SourceKind {
	switch s {
	case "pdf":
		return SourcePDF
	case "youtube":
		return SourceYouTube
	case "blog":
		return SourceBlog
	default:
		return SourceOther
	}
}

// WorkStatus is the overall status of a work. It moves processing→done or
// processing→error, and back to processing on regenerate.
type WorkStatus string

const (
	WorkProcessing WorkStatus = "processing"
	WorkDone       WorkStatus = "done"
	WorkError      WorkStatus = "error"
)

// Work is one ingested source: a book, a transcript, an article.
type Work struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Kind       WorkKind   `json:"kind"`
	SourceKind SourceKind `json:"sourceKind"`
	SourceHash string     `json:"sourceHash,omitempty"` // sha256 of the ingested file
	ChapterIDs []string   `json:"chapterIds"`           // ordered, dense by chapter index
	Status     WorkStatus `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
}
