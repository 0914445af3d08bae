package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tomehq/tome/internal/broker"
	"github.com/tomehq/tome/internal/events"
	"github.com/tomehq/tome/internal/store"
	"github.com/tomehq/tome/internal/types"
)

// Commands translates API verbs into store mutations and job enqueues. It
// runs in the API process; the worker never constructs one.
type Commands struct {
	store  store.Store
	broker broker.Broker
	logger *slog.Logger
}

// NewCommands creates the command producer.
func NewCommands(st store.Store, br broker.Broker, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	return &Commands{store: st, broker: br, logger: logger}
}

func (c *Commands) enqueue(ctx context.Context, job Job) (string, error) {
	return enqueueJob(ctx, c.store, c.broker, c.logger, job)
}

// enqueueJob writes the JobRecord, then publishes. The record exists
// before any consumer can observe the job; a failed publish marks it
// failed. Shared by the command producer and the worker's cascade.
func enqueueJob(ctx context.Context, st store.Store, br broker.Broker, logger *slog.Logger, job Job) (string, error) {
	now := time.Now().UTC()
	rec := &types.JobRecord{
		ID:        uuid.NewString(),
		Type:      string(job.Type),
		WorkID:    job.WorkID,
		ChapterID: job.ChapterID,
		Status:    types.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.SaveJobRecord(ctx, rec); err != nil {
		// Records are observability only; keep going.
		logger.Warn("failed to save job record", "job_type", job.Type, "error", err)
		rec.ID = ""
	}
	job.JobID = rec.ID

	body, err := job.Encode()
	if err != nil {
		return "", err
	}
	if err := br.PublishJob(ctx, body); err != nil {
		if rec.ID != "" {
			if uerr := st.UpdateJobRecord(ctx, rec.ID, types.JobFailed, err.Error()); uerr != nil {
				logger.Warn("failed to mark job record failed", "job_id", rec.ID, "error", uerr)
			}
		}
		return "", fmt.Errorf("failed to enqueue %s job: %w", job.Type, err)
	}

	logger.Debug("job enqueued",
		"job_type", job.Type, "work_id", job.WorkID, "chapter_id", job.ChapterID, "job_id", rec.ID)
	return rec.ID, nil
}

// publishEvent is best-effort; command paths never fail on event loss.
func (c *Commands) publishEvent(ctx context.Context, ev events.Event) {
	body, err := ev.Encode()
	if err != nil {
		c.logger.Warn("failed to encode event", "event_type", ev.Type, "error", err)
		return
	}
	if err := c.broker.PublishEvent(ctx, body); err != nil {
		c.logger.Warn("failed to publish event", "event_type", ev.Type, "error", err)
	}
}

// Generate marks the stage processing and enqueues its job.
func (c *Commands) Generate(ctx context.Context, chapterID string, stage types.Stage) error {
	ch, err := c.store.GetChapter(ctx, chapterID)
	if err != nil {
		return err
	}

	patch := store.StagePatch(stage, types.StatusProcessing).WithLastError("")
	if _, err := c.store.UpdateChapter(ctx, chapterID, patch); err != nil {
		return fmt.Errorf("failed to mark %s processing: %w", stage, err)
	}

	if _, err := c.enqueue(ctx, NewStageJob(stage, ch.WorkID, ch.ID)); err != nil {
		return err
	}
	c.publishEvent(ctx, events.StageStatus(ch.WorkID, ch.ID, stage, types.StatusProcessing))
	return nil
}

// Skip marks the stage skipped. No job is enqueued; downstream stages
// treat a skipped predecessor as satisfied.
func (c *Commands) Skip(ctx context.Context, chapterID string, stage types.Stage) error {
	ch, err := c.store.GetChapter(ctx, chapterID)
	if err != nil {
		return err
	}

	patch := store.StagePatch(stage, types.StatusSkipped).WithLastError("")
	if _, err := c.store.UpdateChapter(ctx, chapterID, patch); err != nil {
		return fmt.Errorf("failed to mark %s skipped: %w", stage, err)
	}

	c.publishEvent(ctx, events.StageStatus(ch.WorkID, ch.ID, stage, types.StatusSkipped))
	return nil
}

// StartWork enqueues the overview job for every chapter of the work. Used
// right after ingest; chapter statuses are already pending.
func (c *Commands) StartWork(ctx context.Context, workID string) error {
	work, err := c.store.GetWork(ctx, workID)
	if err != nil {
		return err
	}
	chapters, err := c.store.ListChaptersByWork(ctx, workID)
	if err != nil {
		return fmt.Errorf("failed to list chapters: %w", err)
	}

	for _, ch := range chapters {
		if _, err := c.enqueue(ctx, NewStageJob(types.StageOverview, work.ID, ch.ID)); err != nil {
			return err
		}
	}
	return nil
}

// RegenerateWork resets every chapter stage to pending and re-runs the
// whole cascade from overviews.
func (c *Commands) RegenerateWork(ctx context.Context, workID string) error {
	work, err := c.store.GetWork(ctx, workID)
	if err != nil {
		return err
	}
	chapters, err := c.store.ListChaptersByWork(ctx, workID)
	if err != nil {
		return fmt.Errorf("failed to list chapters: %w", err)
	}

	pending := types.StatusPending
	for _, ch := range chapters {
		patch := store.ChapterPatch{
			Overview: &pending,
			Analysis: &pending,
			Notes:    &pending,
		}.WithLastError("")
		if _, err := c.store.UpdateChapter(ctx, ch.ID, patch); err != nil {
			return fmt.Errorf("failed to reset chapter %s: %w", ch.ID, err)
		}
	}

	work.Status = types.WorkProcessing
	if err := c.store.SaveWork(ctx, work); err != nil {
		return fmt.Errorf("failed to reset work status: %w", err)
	}

	for _, ch := range chapters {
		if _, err := c.enqueue(ctx, NewStageJob(types.StageOverview, work.ID, ch.ID)); err != nil {
			return err
		}
	}
	return nil
}

// RegenerateAnalysis forces the work-level synthesis regardless of
// outstanding chapters.
func (c *Commands) RegenerateAnalysis(ctx context.Context, workID string) error {
	if _, err := c.store.GetWork(ctx, workID); err != nil {
		return err
	}
	_, err := c.enqueue(ctx, NewBookAnalysisJob(workID, true))
	return err
}

// OrganizeFolders enqueues the global folder-organize job.
func (c *Commands) OrganizeFolders(ctx context.Context) error {
	_, err := c.enqueue(ctx, NewFolderOrganizeJob())
	return err
}
