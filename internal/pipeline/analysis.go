package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/tomehq/tome/internal/events"
	"github.com/tomehq/tome/internal/gateway"
	"github.com/tomehq/tome/internal/store"
	"github.com/tomehq/tome/internal/types"
)

// analysisAttempts bounds the malformed-output retry loop. Transport
// errors are already retried inside the gateway; this loop only re-asks
// when the model returned unusable JSON.
const analysisAttempts = 3

// analysisRetryDelay is the pause between malformed-output retries. Var so
// tests can shorten it.
var analysisRetryDelay = 1 * time.Second

// runAnalysis produces the structured summary fields for one chapter and
// merges them into the chapter's Summary document.
func (w *Worker) runAnalysis(ctx context.Context, job Job) error {
	ch, err := w.readChapter(ctx, job.ChapterID)
	if err != nil {
		return w.failStage(ctx, job, types.StageAnalysis, err)
	}
	if ch == nil {
		return nil
	}
	if ch.Analysis == types.StatusCompleted {
		return nil
	}

	if !ch.Overview.Satisfied() {
		return w.failStage(ctx, job, types.StageAnalysis,
			fmt.Errorf("%w: overview is %s", ErrPreconditionNotMet, ch.Overview))
	}

	work, err := w.store.GetWork(ctx, job.WorkID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return w.failStage(ctx, job, types.StageAnalysis, fmt.Errorf("failed to read work: %w", err))
	}

	ok, err := w.markProcessing(ctx, job, types.StageAnalysis)
	if err != nil {
		return w.failStage(ctx, job, types.StageAnalysis, err)
	}
	if !ok {
		return nil
	}

	var fields *gateway.SummaryFields
	err = retry.Do(
		func() error {
			f, err := w.gateway.GenerateStructuredSummary(ctx, gateway.SummaryRequest{
				Meta:  gateway.Meta{WorkID: work.ID, ChapterID: ch.ID, Stage: string(types.StageAnalysis)},
				Title: ch.Title,
				Text:  ch.RawText,
				Kind:  work.Kind,
			})
			if err != nil {
				return err
			}
			if !f.Usable() {
				return fmt.Errorf("%w: empty main idea and key concepts", gateway.ErrMalformedOutput)
			}
			fields = f
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(analysisAttempts),
		retry.Delay(analysisRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, gateway.ErrMalformedOutput)
		}),
	)
	if err != nil {
		if w.chapterGone(ctx, ch.ID) {
			return nil
		}
		return w.failStage(ctx, job, types.StageAnalysis, fmt.Errorf("analysis generation failed: %w", err))
	}

	if w.chapterGone(ctx, ch.ID) {
		return nil
	}

	created := false
	sum, err := w.store.GetSummaryByChapter(ctx, ch.ID)
	if errors.Is(err, store.ErrNotFound) {
		// Overview was skipped; the summary starts here.
		sum = &types.Summary{ID: uuid.NewString(), ChapterID: ch.ID, WorkID: work.ID}
		created = true
	} else if err != nil {
		return w.failStage(ctx, job, types.StageAnalysis, fmt.Errorf("failed to read summary: %w", err))
	}
	sum.MainIdea = fields.MainIdea
	sum.KeyConcepts = fields.KeyConcepts
	sum.Examples = fields.Examples
	sum.MentalModels = fields.MentalModels
	sum.LifeLessons = fields.LifeLessons
	if err := w.store.SaveSummary(ctx, sum); err != nil {
		return w.failStage(ctx, job, types.StageAnalysis, fmt.Errorf("failed to save summary: %w", err))
	}

	patch := store.StagePatch(types.StageAnalysis, types.StatusCompleted)
	if created {
		patch.SummaryRef = &sum.ID
	}
	if _, err := w.store.UpdateChapter(ctx, ch.ID, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return w.failStage(ctx, job, types.StageAnalysis, fmt.Errorf("failed to complete analysis: %w", err))
	}

	w.publish(ctx, events.ChapterDone(work.ID, ch.ID, sum))
	w.publish(ctx, events.StageStatus(work.ID, ch.ID, types.StageAnalysis, types.StatusCompleted))

	return w.enqueue(ctx, NewStageJob(types.StageNotes, work.ID, ch.ID))
}
