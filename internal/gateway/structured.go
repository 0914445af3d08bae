package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Canonical schemas for each structured operation, compiled once. The chat
// endpoint is asked for json_object output; these validate it locally so a
// model that ignores the instruction still cannot corrupt state.

var summarySchema = jsonschema.MustCompileString("summary.json", `{
	"type": "object",
	"required": ["mainIdea", "keyConcepts"],
	"properties": {
		"mainIdea": {"type": "string"},
		"keyConcepts": {"type": "array", "items": {"type": "string"}},
		"examples": {"type": "array", "items": {"type": "string"}},
		"mentalModels": {"type": "array", "items": {"type": "string"}},
		"lifeLessons": {"type": "array", "items": {"type": "string"}}
	}
}`)

var notesSchema = jsonschema.MustCompileString("notes.json", `{
	"type": "object",
	"required": ["notes"],
	"properties": {
		"notes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["title", "content"],
				"properties": {
					"title": {"type": "string"},
					"content": {"type": "string"},
					"tags": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`)

var analysisSchema = jsonschema.MustCompileString("analysis.json", `{
	"type": "object",
	"required": ["coreThemes", "keyTakeaways"],
	"properties": {
		"coreThemes": {"type": "array", "items": {"type": "string"}},
		"keyTakeaways": {"type": "array", "items": {"type": "string"}},
		"mentalModels": {"type": "array", "items": {"type": "string"}},
		"practicalApplications": {"type": "array", "items": {"type": "string"}}
	}
}`)

var foldersSchema = jsonschema.MustCompileString("folders.json", `{
	"type": "object",
	"required": ["folders"],
	"properties": {
		"folders": {"type": "array", "items": {"type": "string"}, "minItems": 1}
	}
}`)

var assignmentsSchema = jsonschema.MustCompileString("assignments.json", `{
	"type": "object",
	"required": ["assignments"],
	"properties": {
		"assignments": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["noteId", "folder"],
				"properties": {
					"noteId": {"type": "string"},
					"folder": {"type": "string"}
				}
			}
		}
	}
}`)

var linkSchema = jsonschema.MustCompileString("link.json", `{
	"type": "object",
	"required": ["related", "confidence"],
	"properties": {
		"related": {"type": "boolean"},
		"reason": {"type": "string"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`)

// decodeStructured parses model output with code-fence recovery, validates
// it against schema, and unmarshals into out. Every failure mode surfaces
// as ErrMalformedOutput so callers can apply their retry policy.
func decodeStructured(content string, schema *jsonschema.Schema, out any) error {
	raw, err := parseStructuredJSON(content)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

// parseStructuredJSON parses JSON from model output, with lightweight
// recovery for markdown code fences and surrounding prose.
func parseStructuredJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("empty structured output")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractJSONCandidate(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			normalized, mErr := json.Marshal(parsed)
			if mErr != nil {
				return nil, fmt.Errorf("failed to normalize structured output: %w", mErr)
			}
			return normalized, nil
		}
	}

	return nil, fmt.Errorf("no parseable JSON in output")
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start := -1
	closeChar := ""
	switch {
	case objectStart >= 0 && arrayStart >= 0:
		if objectStart < arrayStart {
			start = objectStart
			closeChar = "}"
		} else {
			start = arrayStart
			closeChar = "]"
		}
	case objectStart >= 0:
		start = objectStart
		closeChar = "}"
	case arrayStart >= 0:
		start = arrayStart
		closeChar = "]"
	default:
		return ""
	}

	end := strings.LastIndex(trimmed, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}
