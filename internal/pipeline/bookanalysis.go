package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tomehq/tome/internal/events"
	"github.com/tomehq/tome/internal/gateway"
	"github.com/tomehq/tome/internal/store"
	"github.com/tomehq/tome/internal/types"
)

// runBookAnalysis synthesizes the work-level analysis once every chapter
// is done. Each chapter's notes handler enqueues one of these as a probe;
// all but the last return without side effects. Force (explicit
// regenerate) skips the readiness gate.
func (w *Worker) runBookAnalysis(ctx context.Context, job Job) error {
	work, err := w.store.GetWork(ctx, job.WorkID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read work: %w", err)
	}

	chapters, err := w.store.ListChaptersByWork(ctx, work.ID)
	if err != nil {
		return fmt.Errorf("failed to list chapters: %w", err)
	}

	force := job.bookAnalysisPayload().Force
	if !force {
		for _, ch := range chapters {
			if !ch.Done() {
				return nil
			}
		}
	}

	var summaries []types.Summary
	for _, ch := range chapters {
		sum, err := w.store.GetSummaryByChapter(ctx, ch.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read summary for chapter %s: %w", ch.ID, err)
		}
		summaries = append(summaries, *sum)
	}
	if len(summaries) == 0 {
		return nil
	}

	fields, err := w.gateway.GenerateOverallAnalysis(ctx, gateway.AnalysisRequest{
		Meta:       gateway.Meta{WorkID: work.ID, Stage: "book_analysis"},
		WorkTitle:  work.Title,
		Kind:       work.Kind,
		SourceKind: work.SourceKind,
		Summaries:  summaries,
	})
	if err != nil {
		// The work stays processing; a later probe or an explicit
		// regenerate retries the synthesis.
		return fmt.Errorf("overall analysis failed: %w", err)
	}

	work, err = w.store.GetWork(ctx, job.WorkID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to re-read work: %w", err)
	}

	analysis, err := w.store.GetAnalysis(ctx, work.ID)
	if errors.Is(err, store.ErrNotFound) {
		analysis = &types.Analysis{ID: uuid.NewString(), WorkID: work.ID}
	} else if err != nil {
		return fmt.Errorf("failed to read analysis: %w", err)
	}
	analysis.CoreThemes = fields.CoreThemes
	analysis.KeyTakeaways = fields.KeyTakeaways
	analysis.MentalModels = fields.MentalModels
	analysis.PracticalApplications = fields.PracticalApplications
	if err := w.store.SaveAnalysis(ctx, analysis); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}

	work.Status = types.WorkDone
	if err := w.store.SaveWork(ctx, work); err != nil {
		return fmt.Errorf("failed to mark work done: %w", err)
	}

	w.publish(ctx, events.BookDone(work.ID, work))
	return nil
}
