package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomehq/tome/internal/store"
	"github.com/tomehq/tome/internal/types"
)

// ErrDuplicate is returned when the source file has been ingested before.
var ErrDuplicate = errors.New("work already ingested")

// ErrUnsupported is returned for file types ingest cannot chapterize.
var ErrUnsupported = errors.New("unsupported file type")

// Request describes a source file to ingest.
type Request struct {
	// Path to the source file (.txt, .md, .pdf).
	Path string
	// Title overrides the title derived from the filename.
	Title string
	// Kind is "fiction" or "nonfiction"; anything else means nonfiction.
	Kind string
	// SourceKind overrides the source kind derived from the extension.
	SourceKind string
	Logger     *slog.Logger
}

// Result reports what ingest created.
type Result struct {
	WorkID   string
	Title    string
	Chapters int
}

// Ingest reads req.Path and stores a new work with all chapters pending.
func Ingest(ctx context.Context, st store.Store, req Request) (*Result, error) {
	data, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	return IngestData(ctx, st, filepath.Base(req.Path), data, req)
}

// IngestData chapterizes an in-memory source file and stores the work. The
// filename supplies the extension and the fallback title; req.Path is unused.
func IngestData(ctx context.Context, st store.Store, filename string, data []byte, req Request) (*Result, error) {
	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if existing, err := st.FindWorkByHash(ctx, hash); err == nil {
		return nil, fmt.Errorf("%w: %q (work %s)", ErrDuplicate, existing.Title, existing.ID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for duplicate source: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	var drafts []chapterDraft
	switch ext {
	case ".txt", ".md", ".markdown":
		drafts = textChapters(string(data))
	case ".pdf":
		var err error
		drafts, err = pdfChapters(data)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("no text found in %s", filename)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = deriveTitle(filename)
	}
	sourceKind := types.ParseSourceKind(req.SourceKind)
	if req.SourceKind == "" && ext == ".pdf" {
		sourceKind = types.SourcePDF
	}

	now := time.Now().UTC()
	work := &types.Work{
		ID:         uuid.NewString(),
		Title:      title,
		Kind:       types.ParseWorkKind(req.Kind),
		SourceKind: sourceKind,
		SourceHash: hash,
		Status:     types.WorkProcessing,
		CreatedAt:  now,
	}

	chapters := make([]*types.Chapter, len(drafts))
	for i, d := range drafts {
		chapters[i] = &types.Chapter{
			ID:           uuid.NewString(),
			WorkID:       work.ID,
			ChapterIndex: i,
			Title:        d.Title,
			RawText:      d.Text,
			Overview:     types.StatusPending,
			Analysis:     types.StatusPending,
			Notes:        types.StatusPending,
			UpdatedAt:    now,
		}
		work.ChapterIDs = append(work.ChapterIDs, chapters[i].ID)
	}

	if err := st.SaveWork(ctx, work); err != nil {
		return nil, fmt.Errorf("failed to save work: %w", err)
	}
	for _, ch := range chapters {
		if err := st.SaveChapter(ctx, ch); err != nil {
			// A half-ingested work is worse than none; roll the work back.
			if derr := st.DeleteWork(ctx, work.ID); derr != nil {
				logger.Warn("failed to roll back partial ingest", "work_id", work.ID, "error", derr)
			}
			return nil, fmt.Errorf("failed to save chapter %d: %w", ch.ChapterIndex, err)
		}
	}

	logger.Info("ingested work",
		"work_id", work.ID,
		"title", work.Title,
		"chapters", len(chapters),
		"source", sourceKind,
	)

	return &Result{WorkID: work.ID, Title: work.Title, Chapters: len(chapters)}, nil
}

// deriveTitle turns a filename into a display title: the extension and any
// trailing numeric suffix like "-2" are stripped, separators become spaces.
func deriveTitle(filename string) string {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	re := regexp.MustCompile(`-\d+$`)
	name = re.ReplaceAllString(name, "")

	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.TrimSpace(name)
}
