package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

// chapterDraft is one chapter-to-be: a title and its raw text.
type chapterDraft struct {
	Title string
	Text  string
}

// headingRe matches markdown headings up to level three. Deeper levels are
// body text, so subsections stay inside their chapter.
var headingRe = regexp.MustCompile(`^#{1,3}\s+(.+?)\s*#*\s*$`)

// fallbackParagraphs is the chapter size used when a text has no headings.
const fallbackParagraphs = 20

// textChapters splits markdown or plain text into chapters on headings.
// Text before the first heading becomes an "Introduction" chapter. A text
// with no headings at all is cut into fixed-size paragraph groups instead.
func textChapters(text string) []chapterDraft {
	var drafts []chapterDraft
	title := ""
	var body []string

	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if content == "" {
			return
		}
		t := title
		if t == "" {
			t = "Introduction"
		}
		drafts = append(drafts, chapterDraft{Title: t, Text: content})
	}

	sawHeading := false
	for _, line := range strings.Split(text, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			title = strings.TrimSpace(m[1])
			body = body[:0]
			sawHeading = true
			continue
		}
		body = append(body, line)
	}
	flush()

	if !sawHeading {
		return paragraphChapters(text)
	}
	return drafts
}

var paragraphSep = regexp.MustCompile(`\n\s*\n`)

// paragraphChapters cuts heading-less text into fixed-size paragraph groups.
func paragraphChapters(text string) []chapterDraft {
	paras := splitParagraphs(text)

	var drafts []chapterDraft
	for start := 0; start < len(paras); start += fallbackParagraphs {
		end := min(start+fallbackParagraphs, len(paras))
		drafts = append(drafts, chapterDraft{
			Title: fmt.Sprintf("Part %d", len(drafts)+1),
			Text:  strings.Join(paras[start:end], "\n\n"),
		})
	}
	return drafts
}

func splitParagraphs(text string) []string {
	var paras []string
	for _, p := range paragraphSep.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}
