package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/tomehq/tome/internal/events"
	"github.com/tomehq/tome/internal/gateway"
	"github.com/tomehq/tome/internal/store"
	"github.com/tomehq/tome/internal/types"
)

// folderRetryDelay is the pause between assignment retries. Var so tests
// can shorten it.
var folderRetryDelay = 1 * time.Second

// defaultTaxonomy is the fallback folder list used when the model cannot
// propose names.
var defaultTaxonomy = []string{
	"Core Concepts",
	"Mental Models",
	"Practical Advice",
	"Stories & Examples",
	"Principles",
	"Habits & Routines",
	"Relationships",
	"Decision Making",
}

// runOrganize assigns every unorganized note to a taxonomy folder, in
// batches, persisting after each batch so an interrupted run resumes where
// it stopped. One organize runs per process at a time.
func (w *Worker) runOrganize(ctx context.Context, job Job) error {
	if !w.organizing.CompareAndSwap(false, true) {
		w.publish(ctx, events.FoldersError("folder organization already in progress"))
		return ErrAlreadyRunning
	}
	defer w.organizing.Store(false)

	w.publish(ctx, events.FoldersProcessing("organizing notes into folders"))

	fail := func(err error) error {
		w.publish(ctx, events.FoldersError(err.Error()))
		return err
	}

	notes, err := w.store.ListAllNotes(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to load notes: %w", err))
	}

	fs, err := w.store.GetFolders(ctx)
	if errors.Is(err, store.ErrNotFound) {
		fs = &types.FolderSet{}
	} else if err != nil {
		return fail(fmt.Errorf("failed to load folders: %w", err))
	}

	if len(notes) == 0 {
		w.publish(ctx, events.FoldersDone(fs.Folders, "no notes to organize"))
		return nil
	}

	taxonomy := fs.Names()
	if len(taxonomy) == 0 {
		taxonomy = w.proposeTaxonomy(ctx, notes)
	}

	assigned := fs.Assigned()
	var toAssign []types.Note
	for _, n := range notes {
		if !assigned[n.ID] {
			toAssign = append(toAssign, n)
		}
	}
	if len(toAssign) == 0 {
		w.publish(ctx, events.FoldersDone(fs.Folders, "all notes already organized"))
		return nil
	}

	batchSize := w.cfg.FolderBatchSize
	total := (len(toAssign) + batchSize - 1) / batchSize
	for current := 1; current <= total; current++ {
		batch := toAssign[(current-1)*batchSize : min(current*batchSize, len(toAssign))]

		assignments, err := w.assignBatch(ctx, batch, taxonomy)
		if err != nil {
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			// Batch exhausted its retries; park the notes rather than
			// losing them.
			w.logger.Warn("folder assignment failed, using fallback",
				"batch", current, "total", total, "error", err)
			assignments = make(map[string]string, len(batch))
			for _, n := range batch {
				assignments[n.ID] = types.Uncategorized
			}
		}

		for _, n := range batch {
			fs.Add(assignments[n.ID], n.ID)
		}
		fs.UpdatedAt = time.Now().UTC()
		if err := w.store.SaveFolders(ctx, fs); err != nil {
			return fail(fmt.Errorf("failed to save folders: %w", err))
		}

		w.publish(ctx, events.FoldersProgress(current, total, fs.Folders,
			fmt.Sprintf("organized batch %d of %d", current, total)))
	}

	w.publish(ctx, events.FoldersDone(fs.Folders,
		fmt.Sprintf("organized %d notes into %d folders", len(toAssign), len(fs.Folders))))
	return nil
}

// proposeTaxonomy asks the model for folder names from a sample of note
// titles, falling back to the built-in list.
func (w *Worker) proposeTaxonomy(ctx context.Context, notes []types.Note) []string {
	titles := make([]string, len(notes))
	for i, n := range notes {
		titles[i] = n.Title
	}
	if len(titles) > w.cfg.TaxonomySample {
		rand.Shuffle(len(titles), func(i, j int) {
			titles[i], titles[j] = titles[j], titles[i]
		})
		titles = titles[:w.cfg.TaxonomySample]
	}

	names, err := w.gateway.ProposeFolderNames(ctx, titles)
	if err != nil {
		w.logger.Warn("folder name proposal failed, using default taxonomy", "error", err)
		return defaultTaxonomy
	}
	return names
}

// assignBatch maps every note in the batch to a taxonomy folder. A result
// that skips a note or invents a folder outside the taxonomy counts as a
// failure and is retried.
func (w *Worker) assignBatch(ctx context.Context, batch []types.Note, taxonomy []string) (map[string]string, error) {
	refs := make([]gateway.NoteRef, len(batch))
	for i, n := range batch {
		refs[i] = gateway.NoteRef{ID: n.ID, Title: n.Title, Content: n.Content, Tags: n.Tags}
	}
	valid := make(map[string]bool, len(taxonomy))
	for _, name := range taxonomy {
		valid[name] = true
	}

	var assignments map[string]string
	err := retry.Do(
		func() error {
			result, err := w.gateway.AssignFolders(ctx, gateway.AssignRequest{
				Meta:     gateway.Meta{Stage: "folder_organize"},
				Notes:    refs,
				Taxonomy: taxonomy,
			})
			if err != nil {
				return err
			}
			for _, n := range batch {
				folder, found := result[n.ID]
				if !found {
					return fmt.Errorf("model skipped note %s", n.ID)
				}
				if !valid[folder] {
					return fmt.Errorf("model invented folder %q for note %s", folder, n.ID)
				}
			}
			assignments = result
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(w.cfg.FolderRetries)),
		retry.Delay(folderRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return assignments, nil
}
