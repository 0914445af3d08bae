package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tomehq/tome/internal/store"
	"github.com/tomehq/tome/internal/types"
)

const sampleMarkdown = `A few opening words.

# Why Habits Matter

Small changes compound.

More on compounding.

## The Plateau of Latent Potential

Breakthroughs lag effort.

#### Not a chapter

Deep subsections stay in place.
`

func TestTextChaptersHeadings(t *testing.T) {
	drafts := textChapters(sampleMarkdown)
	if len(drafts) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(drafts))
	}

	wantTitles := []string{"Introduction", "Why Habits Matter", "The Plateau of Latent Potential"}
	for i, want := range wantTitles {
		if drafts[i].Title != want {
			t.Errorf("chapter %d title = %q, want %q", i, drafts[i].Title, want)
		}
	}
	if !strings.Contains(drafts[1].Text, "More on compounding.") {
		t.Errorf("chapter 1 text missing body: %q", drafts[1].Text)
	}
	if !strings.Contains(drafts[2].Text, "#### Not a chapter") {
		t.Errorf("level-four headings should stay in the body, got %q", drafts[2].Text)
	}
}

func TestTextChaptersFallback(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 45; i++ {
		fmt.Fprintf(&b, "Paragraph number %d with enough words to count.\n\n", i)
	}

	drafts := textChapters(b.String())
	if len(drafts) != 3 {
		t.Fatalf("expected 3 paragraph groups, got %d", len(drafts))
	}
	for i, d := range drafts {
		want := fmt.Sprintf("Part %d", i+1)
		if d.Title != want {
			t.Errorf("chapter %d title = %q, want %q", i, d.Title, want)
		}
	}
	if got := strings.Count(drafts[2].Text, "Paragraph number"); got != 5 {
		t.Errorf("last group has %d paragraphs, want 5", got)
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"atomic-habits-1.pdf", "atomic habits"},
		{"Deep_Work.txt", "Deep Work"},
		{"notes.md", "notes"},
		{"/books/The Almanack.pdf", "The Almanack"},
	}
	for _, tt := range tests {
		if got := deriveTitle(tt.in); got != tt.want {
			t.Errorf("deriveTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIngestDataCreatesWork(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	res, err := IngestData(ctx, st, "why-habits.md", []byte(sampleMarkdown), Request{Kind: "nonfiction"})
	if err != nil {
		t.Fatalf("IngestData: %v", err)
	}
	if res.Chapters != 3 {
		t.Fatalf("expected 3 chapters, got %d", res.Chapters)
	}
	if res.Title != "why habits" {
		t.Errorf("title = %q, want %q", res.Title, "why habits")
	}

	work, err := st.GetWork(ctx, res.WorkID)
	if err != nil {
		t.Fatalf("GetWork: %v", err)
	}
	if work.Status != types.WorkProcessing {
		t.Errorf("work status = %s, want processing", work.Status)
	}
	if work.SourceHash == "" {
		t.Error("work has no source hash")
	}
	if work.SourceKind != types.SourceOther {
		t.Errorf("source kind = %s, want other", work.SourceKind)
	}
	if len(work.ChapterIDs) != 3 {
		t.Fatalf("work has %d chapter ids, want 3", len(work.ChapterIDs))
	}

	chapters, err := st.ListChaptersByWork(ctx, work.ID)
	if err != nil {
		t.Fatalf("ListChaptersByWork: %v", err)
	}
	for i, ch := range chapters {
		if ch.ChapterIndex != i {
			t.Errorf("chapter %d has index %d", i, ch.ChapterIndex)
		}
		if ch.ID != work.ChapterIDs[i] {
			t.Errorf("chapter id order mismatch at %d", i)
		}
		if ch.Overview != types.StatusPending || ch.Analysis != types.StatusPending || ch.Notes != types.StatusPending {
			t.Errorf("chapter %d stages not pending: %s/%s/%s", i, ch.Overview, ch.Analysis, ch.Notes)
		}
		if ch.RawText == "" {
			t.Errorf("chapter %d has no text", i)
		}
	}
}

func TestIngestDataRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	if _, err := IngestData(ctx, st, "habits.md", []byte(sampleMarkdown), Request{}); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	_, err := IngestData(ctx, st, "habits-copy.md", []byte(sampleMarkdown), Request{})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestIngestDataRejectsUnknownExtension(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	_, err := IngestData(ctx, st, "slides.docx", []byte("content"), Request{})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestIngestDataRejectsEmptyText(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	if _, err := IngestData(ctx, st, "blank.txt", []byte("  \n\n \n"), Request{}); err == nil {
		t.Fatal("expected an error for a file with no text")
	}
}

func TestIngestDataHonorsOverrides(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	res, err := IngestData(ctx, st, "raw.txt", []byte("One paragraph of body text."), Request{
		Title:      "A Better Title",
		Kind:       "fiction",
		SourceKind: "blog",
	})
	if err != nil {
		t.Fatalf("IngestData: %v", err)
	}

	work, err := st.GetWork(ctx, res.WorkID)
	if err != nil {
		t.Fatalf("GetWork: %v", err)
	}
	if work.Title != "A Better Title" {
		t.Errorf("title = %q", work.Title)
	}
	if work.Kind != types.KindFiction {
		t.Errorf("kind = %s, want fiction", work.Kind)
	}
	if work.SourceKind != types.SourceBlog {
		t.Errorf("source kind = %s, want blog", work.SourceKind)
	}
}

func TestPDFChaptersRejectsGarbage(t *testing.T) {
	if _, err := pdfChapters([]byte("not a pdf at all")); err == nil {
		t.Fatal("expected an error for non-pdf bytes")
	}
}
