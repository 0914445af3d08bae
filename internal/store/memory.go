package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomehq/tome/internal/types"
)

// Memory is an in-memory Store for tests. It deep-copies entities on the
// way in and out so callers can't alias internal state, and mirrors the
// Defra adapter's ordering (works and job records newest-first, chapters
// by index, notes oldest-first except the paginated listing).
type Memory struct {
	mu        sync.Mutex
	works     map[string]types.Work
	chapters  map[string]types.Chapter
	summaries map[string]types.Summary
	notes     map[string]types.Note
	analyses  map[string]types.Analysis // keyed by work id
	graph     *types.GraphData
	folders   *types.FolderSet
	jobs      map[string]types.JobRecord
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		works:     map[string]types.Work{},
		chapters:  map[string]types.Chapter{},
		summaries: map[string]types.Summary{},
		notes:     map[string]types.Note{},
		analyses:  map[string]types.Analysis{},
		jobs:      map[string]types.JobRecord{},
	}
}

// --- Works ---

func (m *Memory) GetWork(_ context.Context, id string) (*types.Work, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.works[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneWork(w)
	return &out, nil
}

func (m *Memory) SaveWork(_ context.Context, w *types.Work) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.works[w.ID] = cloneWork(*w)
	return nil
}

func (m *Memory) ListWorks(_ context.Context) ([]types.Work, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Work, 0, len(m.works))
	for _, w := range m.works {
		out = append(out, cloneWork(w))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) FindWorkByHash(_ context.Context, hash string) (*types.Work, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.works {
		if w.SourceHash == hash {
			out := cloneWork(w)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) DeleteWork(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.works[id]; !ok {
		return ErrNotFound
	}

	for cid, c := range m.chapters {
		if c.WorkID == id {
			delete(m.chapters, cid)
		}
	}
	for sid, s := range m.summaries {
		if s.WorkID == id {
			delete(m.summaries, sid)
		}
	}
	var noteIDs []string
	for nid, n := range m.notes {
		if n.WorkID == id {
			noteIDs = append(noteIDs, nid)
			delete(m.notes, nid)
		}
	}
	m.pruneGraphLocked(noteIDs)
	delete(m.analyses, id)
	delete(m.works, id)
	return nil
}

// --- Chapters ---

func (m *Memory) GetChapter(_ context.Context, id string) (*types.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chapters[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneChapter(c)
	return &out, nil
}

func (m *Memory) SaveChapter(_ context.Context, c *types.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := cloneChapter(*c)
	saved.UpdatedAt = time.Now().UTC()
	m.chapters[c.ID] = saved
	return nil
}

func (m *Memory) UpdateChapter(_ context.Context, id string, patch ChapterPatch) (*types.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chapters[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Overview != nil {
		c.Overview = *patch.Overview
	}
	if patch.Analysis != nil {
		c.Analysis = *patch.Analysis
	}
	if patch.Notes != nil {
		c.Notes = *patch.Notes
	}
	if patch.LastError != nil {
		c.LastError = *patch.LastError
	}
	if patch.SummaryRef != nil {
		c.SummaryRef = *patch.SummaryRef
	}
	c.UpdatedAt = time.Now().UTC()
	m.chapters[id] = c
	out := cloneChapter(c)
	return &out, nil
}

func (m *Memory) ListChaptersByWork(_ context.Context, workID string) ([]types.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Chapter
	for _, c := range m.chapters {
		if c.WorkID == workID {
			out = append(out, cloneChapter(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChapterIndex < out[j].ChapterIndex })
	return out, nil
}

// --- Summaries ---

func (m *Memory) GetSummary(_ context.Context, id string) (*types.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneSummary(s)
	return &out, nil
}

func (m *Memory) GetSummaryByChapter(_ context.Context, chapterID string) (*types.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.summaries {
		if s.ChapterID == chapterID {
			out := cloneSummary(s)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) SaveSummary(_ context.Context, s *types.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[s.ID] = cloneSummary(*s)
	return nil
}

// --- Notes ---

func (m *Memory) GetNote(_ context.Context, id string) (*types.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneNote(n)
	return &out, nil
}

func (m *Memory) SaveNote(_ context.Context, n *types.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[n.ID] = cloneNote(*n)
	return nil
}

func (m *Memory) ListNotes(_ context.Context, page, limit int, search string) (*NotesPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultNotesLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	needle := strings.ToLower(search)
	var matched []types.Note
	for _, n := range m.notes {
		if needle != "" &&
			!strings.Contains(strings.ToLower(n.Title), needle) &&
			!strings.Contains(strings.ToLower(n.Content), needle) {
			continue
		}
		matched = append(matched, cloneNote(n))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return &NotesPage{Notes: matched[start:end], Total: total, Page: page, Limit: limit}, nil
}

func (m *Memory) ListNotesByWork(_ context.Context, workID string) ([]types.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Note
	for _, n := range m.notes {
		if n.WorkID == workID {
			out = append(out, cloneNote(n))
		}
	}
	sortNotesOldestFirst(out)
	return out, nil
}

func (m *Memory) ListAllNotes(_ context.Context) ([]types.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Note, 0, len(m.notes))
	for _, n := range m.notes {
		out = append(out, cloneNote(n))
	}
	sortNotesOldestFirst(out)
	return out, nil
}

func (m *Memory) DeleteNotesByChapter(_ context.Context, workID, chapterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var noteIDs []string
	for nid, n := range m.notes {
		if n.WorkID == workID && n.ChapterID == chapterID {
			noteIDs = append(noteIDs, nid)
			delete(m.notes, nid)
		}
	}
	m.pruneGraphLocked(noteIDs)
	return nil
}

// --- Analysis ---

func (m *Memory) GetAnalysis(_ context.Context, workID string) (*types.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.analyses[workID]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneAnalysis(a)
	return &out, nil
}

func (m *Memory) SaveAnalysis(_ context.Context, a *types.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses[a.WorkID] = cloneAnalysis(*a)
	return nil
}

// --- Graph singleton ---

func (m *Memory) GetGraph(_ context.Context) (*types.GraphData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.graph == nil {
		return nil, ErrNotFound
	}
	return cloneGraph(m.graph), nil
}

func (m *Memory) SaveGraph(_ context.Context, g *types.GraphData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph = cloneGraph(g)
	return nil
}

func (m *Memory) MutateGraph(_ context.Context, fn func(*types.GraphData) error) (*types.GraphData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := types.NewGraphData()
	if m.graph != nil {
		g = cloneGraph(m.graph)
	}
	if err := fn(g); err != nil {
		return nil, err
	}
	m.graph = cloneGraph(g)
	return g, nil
}

func (m *Memory) pruneGraphLocked(noteIDs []string) {
	if m.graph == nil || len(noteIDs) == 0 {
		return
	}
	drop := make(map[string]bool, len(noteIDs))
	for _, id := range noteIDs {
		drop[id] = true
	}
	for id := range drop {
		delete(m.graph.Nodes, id)
	}
	kept := make([]types.GraphEdge, 0, len(m.graph.Edges))
	for _, e := range m.graph.Edges {
		if drop[e.From] || drop[e.To] {
			continue
		}
		kept = append(kept, e)
	}
	m.graph.Edges = kept
}

// --- Folder singleton ---

func (m *Memory) GetFolders(_ context.Context) (*types.FolderSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.folders == nil {
		return nil, ErrNotFound
	}
	return cloneFolderSet(m.folders), nil
}

func (m *Memory) SaveFolders(_ context.Context, fs *types.FolderSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := cloneFolderSet(fs)
	saved.UpdatedAt = time.Now().UTC()
	m.folders = saved
	return nil
}

// --- Job records ---

func (m *Memory) SaveJobRecord(_ context.Context, r *types.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[r.ID] = *r
	return nil
}

func (m *Memory) UpdateJobRecord(_ context.Context, id string, status types.JobRecordStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	if errMsg != "" {
		r.Error = errMsg
	}
	r.UpdatedAt = time.Now().UTC()
	m.jobs[id] = r
	return nil
}

func (m *Memory) ListJobRecords(_ context.Context, limit int) ([]types.JobRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.JobRecord, 0, len(m.jobs))
	for _, r := range m.jobs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- Clone helpers ---

func cloneWork(w types.Work) types.Work {
	w.ChapterIDs = cloneStrings(w.ChapterIDs)
	return w
}

func cloneChapter(c types.Chapter) types.Chapter {
	return c
}

func cloneSummary(s types.Summary) types.Summary {
	s.KeyConcepts = cloneStrings(s.KeyConcepts)
	s.Examples = cloneStrings(s.Examples)
	s.MentalModels = cloneStrings(s.MentalModels)
	s.LifeLessons = cloneStrings(s.LifeLessons)
	return s
}

func cloneNote(n types.Note) types.Note {
	n.Tags = cloneStrings(n.Tags)
	n.Embedding = append([]float32(nil), n.Embedding...)
	n.SuggestedLinks = append([]types.SuggestedLink(nil), n.SuggestedLinks...)
	return n
}

func cloneAnalysis(a types.Analysis) types.Analysis {
	a.CoreThemes = cloneStrings(a.CoreThemes)
	a.KeyTakeaways = cloneStrings(a.KeyTakeaways)
	a.MentalModels = cloneStrings(a.MentalModels)
	a.PracticalApplications = cloneStrings(a.PracticalApplications)
	return a
}

func cloneGraph(g *types.GraphData) *types.GraphData {
	out := types.NewGraphData()
	for id, n := range g.Nodes {
		n.Tags = cloneStrings(n.Tags)
		out.Nodes[id] = n
	}
	out.Edges = append(out.Edges, g.Edges...)
	return out
}

func cloneFolderSet(fs *types.FolderSet) *types.FolderSet {
	out := &types.FolderSet{UpdatedAt: fs.UpdatedAt}
	for _, f := range fs.Folders {
		out.Folders = append(out.Folders, types.Folder{
			Name:    f.Name,
			NoteIDs: cloneStrings(f.NoteIDs),
		})
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func sortNotesOldestFirst(notes []types.Note) {
	sort.Slice(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.Before(notes[j].CreatedAt)
		}
		return notes[i].ID < notes[j].ID
	})
}
