package types

import "time"

// Summary holds both per-chapter artifacts: the markdown overview written by
// the overview stage and the structured fields merged in by the analysis
// stage. One Summary per chapter.
type Summary struct {
	ID           string   `json:"id"`
	ChapterID    string   `json:"chapterId"`
	WorkID       string   `json:"workId"`
	Overview     string   `json:"overview,omitempty"` // markdown, may be empty
	MainIdea     string   `json:"mainIdea,omitempty"`
	KeyConcepts  []string `json:"keyConcepts,omitempty"`
	Examples     []string `json:"examples,omitempty"`
	MentalModels []string `json:"mentalModels,omitempty"`
	LifeLessons  []string `json:"lifeLessons,omitempty"`
}

// Usable reports whether the structured fields carry enough content for the
// notes stage to work from.
func (s *Summary) Usable() bool {
	return s.MainIdea != "" || len(s.KeyConcepts) > 0
}

// SuggestedLink is an AI-validated relation from one note to another.
type SuggestedLink struct {
	TargetID   string  `json:"targetId"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Note is an atomic knowledge unit extracted from a chapter summary.
type Note struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Content        string          `json:"content"` // ≤120 words per the generator contract
	Tags           []string        `json:"tags,omitempty"`
	WorkID         string          `json:"workId"`
	ChapterID      string          `json:"chapterId"`
	Embedding      []float32       `json:"embedding,omitempty"`
	SuggestedLinks []SuggestedLink `json:"suggestedLinks,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Analysis is the work-level synthesis produced once all chapters are done.
type Analysis struct {
	ID                    string   `json:"id"`
	WorkID                string   `json:"workId"`
	CoreThemes            []string `json:"coreThemes,omitempty"`
	KeyTakeaways          []string `json:"keyTakeaways,omitempty"`
	MentalModels          []string `json:"mentalModels,omitempty"`
	PracticalApplications []string `json:"practicalApplications,omitempty"`
}
