package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tomehq/tome/internal/broker"
	"github.com/tomehq/tome/internal/config"
	"github.com/tomehq/tome/internal/events"
	"github.com/tomehq/tome/internal/gateway"
	"github.com/tomehq/tome/internal/graph"
	"github.com/tomehq/tome/internal/store"
	"github.com/tomehq/tome/internal/types"
)

// Worker consumes the jobs queue and runs stage handlers to completion,
// one delivery at a time. Every failure is recorded durably before the
// job is acknowledged, so redeliveries only ever repeat idempotent work.
type Worker struct {
	store   store.Store
	broker  broker.Broker
	gateway gateway.Gateway
	graph   *graph.Service
	cfg     config.PipelineConfig
	logger  *slog.Logger

	// organizing enforces one folder-organize job per process.
	organizing atomic.Bool
}

// NewWorker creates the job consumer.
func NewWorker(st store.Store, br broker.Broker, gw gateway.Gateway, cfg config.PipelineConfig, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NoteParallelism <= 0 {
		cfg.NoteParallelism = 4
	}
	if cfg.FolderBatchSize <= 0 {
		cfg.FolderBatchSize = 20
	}
	if cfg.FolderRetries <= 0 {
		cfg.FolderRetries = 3
	}
	if cfg.TaxonomySample <= 0 {
		cfg.TaxonomySample = 100
	}
	return &Worker{
		store:   st,
		broker:  br,
		gateway: gw,
		graph:   graph.NewService(st),
		cfg:     cfg,
		logger:  logger,
	}
}

// Run consumes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		"note_parallelism", w.cfg.NoteParallelism, "folder_batch_size", w.cfg.FolderBatchSize)
	return w.broker.ConsumeJobs(ctx, w.handle)
}

// handle processes one delivery. The broker adapter acknowledges no matter
// what we return; the returned error is for logging and the job record,
// because stage handlers record their failures durably themselves.
func (w *Worker) handle(ctx context.Context, body []byte) error {
	job, err := DecodeJob(body)
	if err != nil {
		w.logger.Error("dropping undecodable job", "error", err)
		return err
	}

	logger := w.logger.With(
		"job_type", job.Type, "work_id", job.WorkID, "chapter_id", job.ChapterID)
	w.recordJob(ctx, job, types.JobRunning, "")

	started := time.Now()
	switch job.Type {
	case JobOverview:
		err = w.runOverview(ctx, job)
	case JobAnalysis:
		err = w.runAnalysis(ctx, job)
	case JobNotes:
		err = w.runNotes(ctx, job)
	case JobBookAnalysis:
		err = w.runBookAnalysis(ctx, job)
	case JobFolderOrganize:
		err = w.runOrganize(ctx, job)
	default:
		err = fmt.Errorf("unknown job type %q", job.Type)
	}

	if err != nil {
		logger.Error("job failed", "error", err, "elapsed", time.Since(started))
		w.recordJob(ctx, job, types.JobFailed, err.Error())
		return err
	}
	logger.Info("job finished", "elapsed", time.Since(started))
	w.recordJob(ctx, job, types.JobCompleted, "")
	return nil
}

// recordJob updates the delivery's JobRecord. Records are observability
// only, so failures here are logged and swallowed.
func (w *Worker) recordJob(ctx context.Context, job Job, status types.JobRecordStatus, errMsg string) {
	if job.JobID == "" {
		return
	}
	if err := w.store.UpdateJobRecord(ctx, job.JobID, status, errMsg); err != nil {
		w.logger.Warn("failed to update job record",
			"job_id", job.JobID, "status", status, "error", err)
	}
}

// publish sends one event, best-effort: event loss never fails a job.
func (w *Worker) publish(ctx context.Context, ev events.Event) {
	body, err := ev.Encode()
	if err != nil {
		w.logger.Warn("failed to encode event", "event_type", ev.Type, "error", err)
		return
	}
	if err := w.broker.PublishEvent(ctx, body); err != nil {
		w.logger.Warn("failed to publish event", "event_type", ev.Type, "error", err)
	}
}

// enqueue publishes a cascade successor, with the same job-record
// bookkeeping as the command producer.
func (w *Worker) enqueue(ctx context.Context, job Job) error {
	_, err := enqueueJob(ctx, w.store, w.broker, w.logger, job)
	return err
}

// readChapter returns (nil, nil) when the chapter is gone, which handlers
// treat as cancellation.
func (w *Worker) readChapter(ctx context.Context, id string) (*types.Chapter, error) {
	ch, err := w.store.GetChapter(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chapter %s: %w", id, err)
	}
	return ch, nil
}

// chapterGone is the post-AI-call cancellation probe.
func (w *Worker) chapterGone(ctx context.Context, id string) bool {
	_, err := w.store.GetChapter(ctx, id)
	return errors.Is(err, store.ErrNotFound)
}

// failStage records the failure durably, then publishes the failed status
// and the error event. It returns cause so handlers can
// `return w.failStage(...)`.
func (w *Worker) failStage(ctx context.Context, job Job, stage types.Stage, cause error) error {
	patch := store.StagePatch(stage, types.StatusFailed).WithLastError(cause.Error())
	if _, err := w.store.UpdateChapter(ctx, job.ChapterID, patch); err != nil && !errors.Is(err, store.ErrNotFound) {
		w.logger.Error("failed to record stage failure",
			"chapter_id", job.ChapterID, "stage", stage, "error", err)
	}

	w.publish(ctx, events.StageStatus(job.WorkID, job.ChapterID, stage, types.StatusFailed))
	w.publish(ctx, events.Failure(job.WorkID, job.ChapterID, stage, cause.Error()))
	return cause
}

// markProcessing writes the in-flight status and publishes it. The false
// return means the chapter vanished and the handler should cancel.
func (w *Worker) markProcessing(ctx context.Context, job Job, stage types.Stage) (bool, error) {
	patch := store.StagePatch(stage, types.StatusProcessing).WithLastError("")
	if _, err := w.store.UpdateChapter(ctx, job.ChapterID, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to mark %s processing: %w", stage, err)
	}
	w.publish(ctx, events.StageStatus(job.WorkID, job.ChapterID, stage, types.StatusProcessing))
	return true, nil
}
