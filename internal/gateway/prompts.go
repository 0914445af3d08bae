package gateway

import (
	"fmt"
	"strings"

	"github.com/tomehq/tome/internal/types"
)

// Prompt text is clipped to keep chapter-sized inputs inside model context.
const promptTextLimit = 20000

const overviewSystemPrompt = `You are a careful reader writing chapter overviews for a personal knowledge library.

Write a markdown overview of the chapter you are given:
- Open with a short paragraph capturing what the chapter is about.
- Follow with the key points as a bulleted list.
- Close with anything the chapter sets up for later.

Rules:
- Stay faithful to the text. Never invent content that is not there.
- Write in clear, plain prose. No meta commentary about the task.
- Use markdown headers and lists only where they help.`

const summarySystemPrompt = `You are a careful reader distilling one chapter into structured fields for a personal knowledge library.

Return a JSON object with this exact structure:
{
  "mainIdea": "one or two sentences stating the central idea",
  "keyConcepts": ["the ideas the chapter introduces or develops"],
  "examples": ["concrete examples, stories, or case studies used"],
  "mentalModels": ["frameworks or ways of thinking the chapter offers"],
  "lifeLessons": ["actionable takeaways a reader could apply"]
}

Rules:
- Every field must come from the chapter text. Never pad with filler.
- Leave an array empty rather than inventing entries.
- Respond with the JSON object only.`

const notesSystemPrompt = `You are building atomic notes for a Zettelkasten-style library.

From the chapter summary you are given, extract self-contained notes. Each note captures exactly one idea and must be understandable without the chapter.

Return a JSON object with this exact structure:
{
  "notes": [
    {
      "title": "a short declarative statement of the idea",
      "content": "two to five sentences developing the idea in your own words",
      "tags": ["lowercase topical tags"]
    }
  ]
}

Rules:
- One idea per note. Split compound ideas.
- Titles are claims, not topics ("Spaced repetition beats massed practice", not "Repetition").
- Typically 3 to 8 notes per chapter. Fewer is fine for thin chapters.
- Respond with the JSON object only.`

const analysisSystemPrompt = `You are synthesizing a whole work from its chapter summaries for a personal knowledge library.

Return a JSON object with this exact structure:
{
  "coreThemes": ["the threads running through the whole work"],
  "keyTakeaways": ["the conclusions a reader should retain"],
  "mentalModels": ["frameworks the work builds across chapters"],
  "practicalApplications": ["how a reader could act on the work"]
}

Rules:
- Synthesize across chapters. Do not summarize them one by one.
- Ground every entry in the summaries you are given.
- Respond with the JSON object only.`

const folderNamesSystemPrompt = `You are organizing a personal note library into folders.

Given a sample of note titles, propose between 8 and 12 thematic folder names that together cover the library.

Return a JSON object with this exact structure:
{
  "folders": ["folder names"]
}

Rules:
- Names are short noun phrases in title case ("Decision Making", "Systems Thinking").
- Folders must be broad enough to hold many notes, distinct from each other, and cover the sample together.
- Respond with the JSON object only.`

const assignSystemPrompt = `You are filing notes into an existing folder taxonomy.

Assign every note you are given to exactly one folder from the provided list. Use only the provided folder names, verbatim.

Return a JSON object with this exact structure:
{
  "assignments": [
    {"noteId": "the note id", "folder": "a folder name from the list"}
  ]
}

Rules:
- Include every note exactly once.
- Never invent folder names that are not in the list.
- Respond with the JSON object only.`

const linkSystemPrompt = `You judge whether two notes from a personal knowledge library are conceptually related.

Two notes are related when one develops, supports, contrasts with, or applies the idea of the other. Shared vocabulary alone is not a relation.

Return a JSON object with this exact structure:
{
  "related": true or false,
  "reason": "one sentence naming the relation, empty when unrelated",
  "confidence": 0.0 to 1.0
}

Rules:
- Be skeptical. Most note pairs are unrelated.
- Respond with the JSON object only.`

func overviewMessages(req OverviewRequest) []chatMessage {
	user := fmt.Sprintf(`This chapter is from %s.

Chapter title: %q

Chapter text:
---
%s
---

Write the markdown overview.`,
		describeWork(req.Kind, req.SourceKind), req.Title, clipText(req.Text))

	return []chatMessage{
		{Role: "system", Content: overviewSystemPrompt},
		{Role: "user", Content: user},
	}
}

func summaryMessages(req SummaryRequest) []chatMessage {
	user := fmt.Sprintf(`Distill this %s chapter into the structured fields.

Chapter title: %q

Chapter text:
---
%s
---`,
		kindWord(req.Kind), req.Title, clipText(req.Text))

	return []chatMessage{
		{Role: "system", Content: summarySystemPrompt},
		{Role: "user", Content: user},
	}
}

func notesMessages(req NotesRequest) []chatMessage {
	var lines []string
	lines = append(lines, fmt.Sprintf("Chapter: %q (%s)", req.ChapterTitle, kindWord(req.Kind)))
	lines = append(lines, "")
	if req.Summary != nil {
		if req.Summary.MainIdea != "" {
			lines = append(lines, "Main idea: "+req.Summary.MainIdea)
		}
		lines = append(lines, bulletSection("Key concepts", req.Summary.KeyConcepts)...)
		lines = append(lines, bulletSection("Examples", req.Summary.Examples)...)
		lines = append(lines, bulletSection("Mental models", req.Summary.MentalModels)...)
		lines = append(lines, bulletSection("Life lessons", req.Summary.LifeLessons)...)
	}
	lines = append(lines, "", "Extract the atomic notes.")

	return []chatMessage{
		{Role: "system", Content: notesSystemPrompt},
		{Role: "user", Content: strings.Join(lines, "\n")},
	}
}

func analysisMessages(req AnalysisRequest) []chatMessage {
	var lines []string
	lines = append(lines, fmt.Sprintf("Work: %q, %s from %s.", req.WorkTitle, kindWord(req.Kind), sourceWord(req.SourceKind)))
	lines = append(lines, "", "Chapter summaries in order:")

	for i, s := range req.Summaries {
		lines = append(lines, "", fmt.Sprintf("Chapter %d:", i+1))
		if s.MainIdea != "" {
			lines = append(lines, "Main idea: "+s.MainIdea)
		}
		lines = append(lines, bulletSection("Key concepts", s.KeyConcepts)...)
		lines = append(lines, bulletSection("Mental models", s.MentalModels)...)
		lines = append(lines, bulletSection("Life lessons", s.LifeLessons)...)
	}
	lines = append(lines, "", "Synthesize the work-level analysis.")

	return []chatMessage{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: strings.Join(lines, "\n")},
	}
}

func folderNamesMessages(titles []string) []chatMessage {
	var lines []string
	lines = append(lines, fmt.Sprintf("A sample of %d note titles from the library:", len(titles)), "")
	for i, title := range titles {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, title))
	}
	lines = append(lines, "", "Propose the folder taxonomy.")

	return []chatMessage{
		{Role: "system", Content: folderNamesSystemPrompt},
		{Role: "user", Content: strings.Join(lines, "\n")},
	}
}

func assignMessages(req AssignRequest) []chatMessage {
	var lines []string
	lines = append(lines, "Folders:")
	for _, name := range req.Taxonomy {
		lines = append(lines, "- "+name)
	}
	lines = append(lines, "", "Notes to file:")
	for _, note := range req.Notes {
		lines = append(lines, "", fmt.Sprintf("[id: %s]", note.ID))
		lines = append(lines, "Title: "+note.Title)
		if len(note.Tags) > 0 {
			lines = append(lines, "Tags: "+strings.Join(note.Tags, ", "))
		}
		lines = append(lines, "Content: "+clipTextN(note.Content, 600))
	}
	lines = append(lines, "", "Assign every note to one folder from the list.")

	return []chatMessage{
		{Role: "system", Content: assignSystemPrompt},
		{Role: "user", Content: strings.Join(lines, "\n")},
	}
}

func linkMessages(req LinkRequest) []chatMessage {
	user := fmt.Sprintf(`Note A:
Title: %s
Content: %s

Note B:
Title: %s
Content: %s

Are these notes conceptually related?`,
		req.Source.Title, clipTextN(req.Source.Content, 1200),
		req.Candidate.Title, clipTextN(req.Candidate.Content, 1200))

	return []chatMessage{
		{Role: "system", Content: linkSystemPrompt},
		{Role: "user", Content: user},
	}
}

func describeWork(kind types.WorkKind, source types.SourceKind) string {
	return fmt.Sprintf("a %s %s", kindWord(kind), sourceWord(source))
}

func kindWord(kind types.WorkKind) string {
	switch kind {
	case types.KindFiction:
		return "fiction"
	case types.KindNonfiction:
		return "nonfiction"
	default:
		return "nonfiction"
	}
}

func sourceWord(source types.SourceKind) string {
	switch source {
	case types.SourcePDF:
		return "book"
	case types.SourceYouTube:
		return "video transcript"
	case types.SourceBlog:
		return "blog post"
	default:
		return "work"
	}
}

func bulletSection(header string, items []string) []string {
	if len(items) == 0 {
		return nil
	}
	lines := make([]string, 0, len(items)+1)
	lines = append(lines, header+":")
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return lines
}

func clipText(text string) string {
	return clipTextN(text, promptTextLimit)
}

func clipTextN(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + "\n\n[... text truncated for length ...]"
}
