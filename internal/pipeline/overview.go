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

// runOverview generates the markdown overview for one chapter and starts
// the per-chapter cascade. A missing chapter at any checkpoint means the
// work was deleted mid-flight: the handler aborts silently and the ack
// discards the job.
func (w *Worker) runOverview(ctx context.Context, job Job) error {
	ch, err := w.readChapter(ctx, job.ChapterID)
	if err != nil {
		return w.failStage(ctx, job, types.StageOverview, err)
	}
	if ch == nil {
		return nil
	}
	// Redelivery of an already-completed stage is a no-op.
	if ch.Overview == types.StatusCompleted {
		return nil
	}

	work, err := w.store.GetWork(ctx, job.WorkID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return w.failStage(ctx, job, types.StageOverview, fmt.Errorf("failed to read work: %w", err))
	}

	ok, err := w.markProcessing(ctx, job, types.StageOverview)
	if err != nil {
		return w.failStage(ctx, job, types.StageOverview, err)
	}
	if !ok {
		return nil
	}

	overview, err := w.gateway.GenerateOverview(ctx, gateway.OverviewRequest{
		Meta:       gateway.Meta{WorkID: work.ID, ChapterID: ch.ID, Stage: string(types.StageOverview)},
		Title:      ch.Title,
		Text:       ch.RawText,
		Kind:       work.Kind,
		SourceKind: work.SourceKind,
		OnToken: func(cumulative string) {
			w.publish(ctx, events.OverviewStream(work.ID, ch.ID, cumulative))
		},
	})
	if err != nil {
		if w.chapterGone(ctx, ch.ID) {
			return nil
		}
		return w.failStage(ctx, job, types.StageOverview, fmt.Errorf("overview generation failed: %w", err))
	}

	// The work may have been deleted while the model ran.
	if w.chapterGone(ctx, ch.ID) {
		return nil
	}

	sum, err := w.store.GetSummaryByChapter(ctx, ch.ID)
	if errors.Is(err, store.ErrNotFound) {
		sum = &types.Summary{ID: uuid.NewString(), ChapterID: ch.ID, WorkID: work.ID}
	} else if err != nil {
		return w.failStage(ctx, job, types.StageOverview, fmt.Errorf("failed to read summary: %w", err))
	}
	sum.Overview = overview
	if err := w.store.SaveSummary(ctx, sum); err != nil {
		return w.failStage(ctx, job, types.StageOverview, fmt.Errorf("failed to save overview: %w", err))
	}

	patch := store.StagePatch(types.StageOverview, types.StatusCompleted)
	patch.SummaryRef = &sum.ID
	if _, err := w.store.UpdateChapter(ctx, ch.ID, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return w.failStage(ctx, job, types.StageOverview, fmt.Errorf("failed to complete overview: %w", err))
	}
	w.publish(ctx, events.StageStatus(work.ID, ch.ID, types.StageOverview, types.StatusCompleted))

	return w.enqueue(ctx, NewStageJob(types.StageAnalysis, work.ID, ch.ID))
}
