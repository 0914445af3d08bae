package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// pagesPerChapter groups PDF pages into chapters of this size. PDFs carry no
// reliable structural markers, so fixed page runs stand in for chapters.
const pagesPerChapter = 12

// pdfChapters extracts per-page text and groups non-blank pages into chapters.
func pdfChapters(data []byte) ([]chapterDraft, error) {
	// The page count doubles as a structural sanity check before the text pass.
	if _, err := api.PageCount(bytes.NewReader(data), nil); err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pdf: %w", err)
	}

	var drafts []chapterDraft
	var group []string
	flush := func() {
		content := strings.TrimSpace(strings.Join(group, "\n\n"))
		group = group[:0]
		if content == "" {
			return
		}
		drafts = append(drafts, chapterDraft{
			Title: fmt.Sprintf("Part %d", len(drafts)+1),
			Text:  content,
		})
	}

	for i := 1; i <= r.NumPage(); i++ {
		text, err := extractPageText(r, i)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		group = append(group, text)
		if len(group) == pagesPerChapter {
			flush()
		}
	}
	flush()

	if len(drafts) == 0 {
		return nil, errors.New("no extractable text in pdf (scanned images need OCR)")
	}
	return drafts, nil
}

// extractPageText reads one page's plain text. The parser panics on some
// malformed font tables, so the call is fenced.
func extractPageText(r *pdf.Reader, pageNum int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf parser: %v", rec)
		}
	}()

	page := r.Page(pageNum)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
