package store

import (
	"encoding/json"
	"time"

	"github.com/tomehq/tome/internal/types"
)

// Record decoders. DefraDB responses arrive as map[string]any with JSON
// number semantics (all numbers are float64); these helpers tolerate
// missing and null fields.

func parseWorkRecord(doc map[string]any) *types.Work {
	return &types.Work{
		ID:         getString(doc, "id"),
		Title:      getString(doc, "title"),
		Kind:       types.WorkKind(getString(doc, "kind")),
		SourceKind: types.SourceKind(getString(doc, "source_kind")),
		SourceHash: getString(doc, "source_hash"),
		ChapterIDs: getStringSlice(doc, "chapter_ids"),
		Status:     types.WorkStatus(getString(doc, "status")),
		CreatedAt:  getTime(doc, "created_at"),
	}
}

func parseChapterRecord(doc map[string]any) *types.Chapter {
	return &types.Chapter{
		ID:           getString(doc, "id"),
		WorkID:       getString(doc, "work_id"),
		ChapterIndex: getInt(doc, "chapter_index"),
		Title:        getString(doc, "title"),
		RawText:      getString(doc, "raw_text"),
		SummaryRef:   getString(doc, "summary_ref"),
		Overview:     types.StageStatus(getString(doc, "overview_status")),
		Analysis:     types.StageStatus(getString(doc, "analysis_status")),
		Notes:        types.StageStatus(getString(doc, "notes_status")),
		LastError:    getString(doc, "last_error"),
		UpdatedAt:    getTime(doc, "updated_at"),
	}
}

func parseSummaryRecord(doc map[string]any) *types.Summary {
	return &types.Summary{
		ID:           getString(doc, "id"),
		ChapterID:    getString(doc, "chapter_id"),
		WorkID:       getString(doc, "work_id"),
		Overview:     getString(doc, "overview"),
		MainIdea:     getString(doc, "main_idea"),
		KeyConcepts:  getStringSlice(doc, "key_concepts"),
		Examples:     getStringSlice(doc, "examples"),
		MentalModels: getStringSlice(doc, "mental_models"),
		LifeLessons:  getStringSlice(doc, "life_lessons"),
	}
}

func parseNoteRecord(doc map[string]any) *types.Note {
	n := &types.Note{
		ID:        getString(doc, "id"),
		Title:     getString(doc, "title"),
		Content:   getString(doc, "content"),
		Tags:      getStringSlice(doc, "tags"),
		WorkID:    getString(doc, "work_id"),
		ChapterID: getString(doc, "chapter_id"),
		Embedding: getFloat32Slice(doc, "embedding"),
		CreatedAt: getTime(doc, "created_at"),
	}
	if blob := getString(doc, "suggested_links"); blob != "" {
		_ = json.Unmarshal([]byte(blob), &n.SuggestedLinks)
	}
	return n
}

func parseAnalysisRecord(doc map[string]any) *types.Analysis {
	return &types.Analysis{
		ID:                    getString(doc, "id"),
		WorkID:                getString(doc, "work_id"),
		CoreThemes:            getStringSlice(doc, "core_themes"),
		KeyTakeaways:          getStringSlice(doc, "key_takeaways"),
		MentalModels:          getStringSlice(doc, "mental_models"),
		PracticalApplications: getStringSlice(doc, "practical_applications"),
	}
}

func parseJobRecord(doc map[string]any) *types.JobRecord {
	return &types.JobRecord{
		ID:        getString(doc, "id"),
		Type:      getString(doc, "job_type"),
		WorkID:    getString(doc, "work_id"),
		ChapterID: getString(doc, "chapter_id"),
		Status:    types.JobRecordStatus(getString(doc, "status")),
		Error:     getString(doc, "error"),
		CreatedAt: getTime(doc, "created_at"),
		UpdatedAt: getTime(doc, "updated_at"),
	}
}

// getString safely extracts a string from a map.
func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// getInt extracts an int; GraphQL numbers decode as float64.
func getInt(m map[string]any, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}

func getStringSlice(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getFloat32Slice(m map[string]any, key string) []float32 {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(raw))
	for _, r := range raw {
		if f, ok := r.(float64); ok {
			out = append(out, float32(f))
		}
	}
	return out
}

func getTime(m map[string]any, key string) time.Time {
	s, ok := m[key].(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
