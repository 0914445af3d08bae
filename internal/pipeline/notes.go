package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tomehq/tome/internal/events"
	"github.com/tomehq/tome/internal/gateway"
	"github.com/tomehq/tome/internal/store"
	"github.com/tomehq/tome/internal/types"
	"github.com/tomehq/tome/internal/vector"
)

// linkCandidates bounds the similarity search per note.
const linkCandidates = 5

// linkConfidenceFloor drops link suggestions the model was unsure about.
const linkConfidenceFloor = 0.5

// runNotes regenerates the chapter's atomic notes: wipe the old ones, draft
// new ones from the summary, embed each draft, and validate its nearest
// neighbors into suggested links. Drafts are processed in parallel and the
// stage fails fast on the first error.
func (w *Worker) runNotes(ctx context.Context, job Job) error {
	ch, err := w.readChapter(ctx, job.ChapterID)
	if err != nil {
		return w.failStage(ctx, job, types.StageNotes, err)
	}
	if ch == nil {
		return nil
	}
	if ch.Notes == types.StatusCompleted {
		return nil
	}

	if ch.Analysis != types.StatusCompleted {
		return w.failStage(ctx, job, types.StageNotes,
			fmt.Errorf("%w: analysis is %s", ErrPreconditionNotMet, ch.Analysis))
	}
	sum, err := w.store.GetSummaryByChapter(ctx, ch.ID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !sum.Usable()) {
		return w.failStage(ctx, job, types.StageNotes,
			fmt.Errorf("%w: chapter summary has no usable content", ErrPreconditionNotMet))
	}
	if err != nil {
		return w.failStage(ctx, job, types.StageNotes, fmt.Errorf("failed to read summary: %w", err))
	}

	work, err := w.store.GetWork(ctx, job.WorkID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return w.failStage(ctx, job, types.StageNotes, fmt.Errorf("failed to read work: %w", err))
	}

	ok, err := w.markProcessing(ctx, job, types.StageNotes)
	if err != nil {
		return w.failStage(ctx, job, types.StageNotes, err)
	}
	if !ok {
		return nil
	}

	// Regeneration replaces: prior notes and their graph presence go first.
	if err := w.store.DeleteNotesByChapter(ctx, work.ID, ch.ID); err != nil {
		return w.failStage(ctx, job, types.StageNotes, fmt.Errorf("failed to clear prior notes: %w", err))
	}

	// Link corpus is a snapshot taken after the wipe: new drafts link
	// against the rest of the library, not against each other.
	corpus, err := w.store.ListAllNotes(ctx)
	if err != nil {
		return w.failStage(ctx, job, types.StageNotes, fmt.Errorf("failed to load note corpus: %w", err))
	}
	index := vector.FromNotes(corpus)
	byID := make(map[string]types.Note, len(corpus))
	for _, n := range corpus {
		byID[n.ID] = n
	}

	drafts, err := w.gateway.GenerateAtomicNotes(ctx, gateway.NotesRequest{
		Meta:         gateway.Meta{WorkID: work.ID, ChapterID: ch.ID, Stage: string(types.StageNotes)},
		ChapterTitle: ch.Title,
		Summary:      sum,
		Kind:         work.Kind,
	})
	if err != nil {
		if w.chapterGone(ctx, ch.ID) {
			return nil
		}
		return w.failStage(ctx, job, types.StageNotes, fmt.Errorf("note generation failed: %w", err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.NoteParallelism)
	for _, draft := range drafts {
		g.Go(func() error {
			return w.buildNote(gctx, work, ch, draft, index, byID)
		})
	}
	if err := g.Wait(); err != nil {
		if w.chapterGone(ctx, ch.ID) {
			return nil
		}
		return w.failStage(ctx, job, types.StageNotes, err)
	}

	if w.chapterGone(ctx, ch.ID) {
		return nil
	}

	patch := store.StagePatch(types.StageNotes, types.StatusCompleted)
	if _, err := w.store.UpdateChapter(ctx, ch.ID, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return w.failStage(ctx, job, types.StageNotes, fmt.Errorf("failed to complete notes: %w", err))
	}

	w.publish(ctx, events.ChapterFinalized(work.ID, ch.ID))
	w.publish(ctx, events.StageStatus(work.ID, ch.ID, types.StageNotes, types.StatusCompleted))

	// Probe the work-level synthesis; it no-ops until the last chapter.
	return w.enqueue(ctx, NewBookAnalysisJob(work.ID, false))
}

// buildNote embeds one draft, validates its nearest neighbors into
// suggested links, and persists the note and its graph node.
func (w *Worker) buildNote(ctx context.Context, work *types.Work, ch *types.Chapter, draft gateway.NoteDraft, index *vector.Index, byID map[string]types.Note) error {
	note := &types.Note{
		ID:        uuid.NewString(),
		Title:     draft.Title,
		Content:   draft.Content,
		Tags:      draft.Tags,
		WorkID:    work.ID,
		ChapterID: ch.ID,
		CreatedAt: time.Now().UTC(),
	}

	meta := gateway.Meta{WorkID: work.ID, ChapterID: ch.ID, Stage: string(types.StageNotes)}
	emb, err := w.gateway.Embed(ctx, gateway.EmbedRequest{
		Meta: meta,
		Text: note.Title + "\n" + note.Content,
	})
	if err != nil {
		return fmt.Errorf("failed to embed note %q: %w", note.Title, err)
	}
	note.Embedding = emb

	for _, match := range index.TopK(emb, linkCandidates, note.ID) {
		candidate, found := byID[match.ID]
		if !found {
			continue
		}
		verdict, err := w.gateway.ExplainLink(ctx, gateway.LinkRequest{
			Meta:      meta,
			Source:    gateway.NoteRef{ID: note.ID, Title: note.Title, Content: note.Content, Tags: note.Tags},
			Candidate: gateway.NoteRef{ID: candidate.ID, Title: candidate.Title, Content: candidate.Content, Tags: candidate.Tags},
		})
		if err != nil {
			return fmt.Errorf("failed to validate link for note %q: %w", note.Title, err)
		}
		if !verdict.Related || verdict.Confidence <= linkConfidenceFloor {
			continue
		}
		note.SuggestedLinks = append(note.SuggestedLinks, types.SuggestedLink{
			TargetID:   candidate.ID,
			Reason:     verdict.Reason,
			Confidence: verdict.Confidence,
		})
	}

	if err := w.store.SaveNote(ctx, note); err != nil {
		return fmt.Errorf("failed to save note %q: %w", note.Title, err)
	}
	if err := w.graph.AddNode(ctx, note); err != nil {
		return fmt.Errorf("failed to add graph node for note %q: %w", note.Title, err)
	}
	return nil
}
