package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tomehq/tome/internal/defra"
	"github.com/tomehq/tome/internal/types"
)

// Collection names in DefraDB. They match the embedded schema registry.
const (
	collectionWork      = "Work"
	collectionChapter   = "Chapter"
	collectionSummary   = "Summary"
	collectionNote      = "Note"
	collectionAnalysis  = "Analysis"
	collectionGraph     = "Graph"
	collectionFolderSet = "FolderSet"
	collectionJobRecord = "JobRecord"
)

// Singleton document ids.
const (
	graphDocID   = "graph"
	foldersDocID = "folders"
)

// Defra is the DefraDB-backed Store. Entities are stored with an
// application-generated id field; DefraDB's _docID stays internal.
type Defra struct {
	client *defra.Client
	logger *slog.Logger

	// graphMu serializes read-modify-write cycles on the Graph singleton.
	// The document itself is last-writer-wins; the mutex prevents two
	// in-process mutators from clobbering each other mid-cycle.
	graphMu sync.Mutex
}

var _ Store = (*Defra)(nil)

// NewDefra creates a DefraDB-backed store.
func NewDefra(client *defra.Client, logger *slog.Logger) *Defra {
	if logger == nil {
		logger = slog.Default()
	}
	return &Defra{client: client, logger: logger}
}

var workFields = []string{"id", "title", "kind", "source_kind", "source_hash", "chapter_ids", "status", "created_at"}

// --- Works ---

func (s *Defra) GetWork(ctx context.Context, id string) (*types.Work, error) {
	doc, err := s.queryOne(ctx, collectionWork, "id", id, workFields)
	if err != nil {
		return nil, err
	}
	return parseWorkRecord(doc), nil
}

func (s *Defra) SaveWork(ctx context.Context, w *types.Work) error {
	if w.ID == "" {
		return fmt.Errorf("save work: missing id")
	}
	fields := map[string]any{
		"title":       w.Title,
		"kind":        string(w.Kind),
		"source_kind": string(w.SourceKind),
		"source_hash": w.SourceHash,
		"chapter_ids": w.ChapterIDs,
		"status":      string(w.Status),
		"created_at":  formatTime(w.CreatedAt),
	}
	if _, err := s.client.Upsert(ctx, collectionWork, idFilter(w.ID), withID(fields, w.ID), fields); err != nil {
		return fmt.Errorf("save work: %w", err)
	}
	return nil
}

func (s *Defra) ListWorks(ctx context.Context) ([]types.Work, error) {
	resp, err := defra.NewQuery(collectionWork).
		Fields(workFields...).
		OrderBy("created_at", "DESC").
		Execute(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("list works: %w", err)
	}
	if msg := resp.Error(); msg != "" {
		return nil, fmt.Errorf("list works: %s", msg)
	}
	docs := docsFrom(resp.Data, collectionWork)
	works := make([]types.Work, 0, len(docs))
	for _, d := range docs {
		works = append(works, *parseWorkRecord(d))
	}
	return works, nil
}

func (s *Defra) FindWorkByHash(ctx context.Context, hash string) (*types.Work, error) {
	doc, err := s.queryOne(ctx, collectionWork, "source_hash", hash, workFields)
	if err != nil {
		return nil, err
	}
	return parseWorkRecord(doc), nil
}

func (s *Defra) DeleteWork(ctx context.Context, id string) error {
	if _, err := s.GetWork(ctx, id); err != nil {
		return err
	}

	byWork := map[string]any{"work_id": map[string]any{"_eq": id}}

	if _, err := s.client.DeleteMany(ctx, collectionChapter, byWork); err != nil {
		return fmt.Errorf("delete work %s: chapters: %w", id, err)
	}
	if _, err := s.client.DeleteMany(ctx, collectionSummary, byWork); err != nil {
		return fmt.Errorf("delete work %s: summaries: %w", id, err)
	}

	// Collect note ids before deleting so the graph can be pruned.
	noteIDs, err := s.noteIDs(ctx, byWork)
	if err != nil {
		return fmt.Errorf("delete work %s: %w", id, err)
	}
	if _, err := s.client.DeleteMany(ctx, collectionNote, byWork); err != nil {
		return fmt.Errorf("delete work %s: notes: %w", id, err)
	}
	if err := s.pruneGraph(ctx, noteIDs); err != nil {
		return fmt.Errorf("delete work %s: graph: %w", id, err)
	}

	if _, err := s.client.DeleteMany(ctx, collectionAnalysis, byWork); err != nil {
		return fmt.Errorf("delete work %s: analysis: %w", id, err)
	}
	if _, err := s.client.DeleteMany(ctx, collectionWork, idFilter(id)); err != nil {
		return fmt.Errorf("delete work %s: %w", id, err)
	}

	s.logger.Info("work deleted", "work_id", id, "notes_pruned", len(noteIDs))
	return nil
}

var chapterFields = []string{
	"id", "work_id", "chapter_index", "title", "raw_text", "summary_ref",
	"overview_status", "analysis_status", "notes_status", "last_error", "updated_at",
}

// --- Chapters ---

func (s *Defra) GetChapter(ctx context.Context, id string) (*types.Chapter, error) {
	doc, err := s.queryOne(ctx, collectionChapter, "id", id, chapterFields)
	if err != nil {
		return nil, err
	}
	return parseChapterRecord(doc), nil
}

func (s *Defra) SaveChapter(ctx context.Context, c *types.Chapter) error {
	if c.ID == "" {
		return fmt.Errorf("save chapter: missing id")
	}
	fields := map[string]any{
		"work_id":         c.WorkID,
		"chapter_index":   c.ChapterIndex,
		"title":           c.Title,
		"raw_text":        c.RawText,
		"summary_ref":     c.SummaryRef,
		"overview_status": string(c.Overview),
		"analysis_status": string(c.Analysis),
		"notes_status":    string(c.Notes),
		"last_error":      c.LastError,
		"updated_at":      formatTime(time.Now().UTC()),
	}
	if _, err := s.client.Upsert(ctx, collectionChapter, idFilter(c.ID), withID(fields, c.ID), fields); err != nil {
		return fmt.Errorf("save chapter: %w", err)
	}
	return nil
}

func (s *Defra) UpdateChapter(ctx context.Context, id string, patch ChapterPatch) (*types.Chapter, error) {
	input := map[string]any{
		"updated_at": formatTime(time.Now().UTC()),
	}
	if patch.Overview != nil {
		input[types.StageField(types.StageOverview)] = string(*patch.Overview)
	}
	if patch.Analysis != nil {
		input[types.StageField(types.StageAnalysis)] = string(*patch.Analysis)
	}
	if patch.Notes != nil {
		input[types.StageField(types.StageNotes)] = string(*patch.Notes)
	}
	if patch.LastError != nil {
		input["last_error"] = *patch.LastError
	}
	if patch.SummaryRef != nil {
		input["summary_ref"] = *patch.SummaryRef
	}

	ids, err := s.client.UpdateMany(ctx, collectionChapter, idFilter(id), input)
	if err != nil {
		return nil, fmt.Errorf("update chapter %s: %w", id, err)
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	return s.GetChapter(ctx, id)
}

func (s *Defra) ListChaptersByWork(ctx context.Context, workID string) ([]types.Chapter, error) {
	resp, err := defra.NewQuery(collectionChapter).
		Filter("work_id", workID).
		Fields(chapterFields...).
		OrderBy("chapter_index", "ASC").
		Execute(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	if msg := resp.Error(); msg != "" {
		return nil, fmt.Errorf("list chapters: %s", msg)
	}
	docs := docsFrom(resp.Data, collectionChapter)
	chapters := make([]types.Chapter, 0, len(docs))
	for _, d := range docs {
		chapters = append(chapters, *parseChapterRecord(d))
	}
	return chapters, nil
}

var summaryFields = []string{
	"id", "chapter_id", "work_id", "overview", "main_idea",
	"key_concepts", "examples", "mental_models", "life_lessons",
}

// --- Summaries ---

func (s *Defra) GetSummary(ctx context.Context, id string) (*types.Summary, error) {
	doc, err := s.queryOne(ctx, collectionSummary, "id", id, summaryFields)
	if err != nil {
		return nil, err
	}
	return parseSummaryRecord(doc), nil
}

func (s *Defra) GetSummaryByChapter(ctx context.Context, chapterID string) (*types.Summary, error) {
	doc, err := s.queryOne(ctx, collectionSummary, "chapter_id", chapterID, summaryFields)
	if err != nil {
		return nil, err
	}
	return parseSummaryRecord(doc), nil
}

func (s *Defra) SaveSummary(ctx context.Context, sum *types.Summary) error {
	if sum.ID == "" {
		return fmt.Errorf("save summary: missing id")
	}
	fields := map[string]any{
		"chapter_id":    sum.ChapterID,
		"work_id":       sum.WorkID,
		"overview":      sum.Overview,
		"main_idea":     sum.MainIdea,
		"key_concepts":  sum.KeyConcepts,
		"examples":      sum.Examples,
		"mental_models": sum.MentalModels,
		"life_lessons":  sum.LifeLessons,
	}
	if _, err := s.client.Upsert(ctx, collectionSummary, idFilter(sum.ID), withID(fields, sum.ID), fields); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

var noteFields = []string{
	"id", "title", "content", "tags", "work_id", "chapter_id",
	"embedding", "suggested_links", "created_at",
}

// --- Notes ---

func (s *Defra) GetNote(ctx context.Context, id string) (*types.Note, error) {
	doc, err := s.queryOne(ctx, collectionNote, "id", id, noteFields)
	if err != nil {
		return nil, err
	}
	return parseNoteRecord(doc), nil
}

func (s *Defra) SaveNote(ctx context.Context, n *types.Note) error {
	if n.ID == "" {
		return fmt.Errorf("save note: missing id")
	}
	links, err := json.Marshal(n.SuggestedLinks)
	if err != nil {
		return fmt.Errorf("save note: marshal links: %w", err)
	}
	fields := map[string]any{
		"title":           n.Title,
		"content":         n.Content,
		"tags":            n.Tags,
		"work_id":         n.WorkID,
		"chapter_id":      n.ChapterID,
		"embedding":       n.Embedding,
		"suggested_links": string(links),
		"created_at":      formatTime(n.CreatedAt),
	}
	if _, err := s.client.Upsert(ctx, collectionNote, idFilter(n.ID), withID(fields, n.ID), fields); err != nil {
		return fmt.Errorf("save note: %w", err)
	}
	return nil
}

func (s *Defra) ListNotes(ctx context.Context, page, limit int, search string) (*NotesPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultNotesLimit
	}

	varDefs := ""
	filter := ""
	var vars map[string]any
	if search != "" {
		varDefs = "query($pat: String!) "
		filter = "filter: {_or: [{title: {_ilike: $pat}}, {content: {_ilike: $pat}}]}, "
		vars = map[string]any{"pat": "%" + search + "%"}
	}

	// Total count first; DefraDB has no aggregate-with-filter shortcut our
	// client exposes, so count the matching ids.
	countQuery := fmt.Sprintf(`%s{ %s(%s) { id } }`, varDefs, collectionNote, filter+"limit: 0")
	// limit: 0 means unlimited in DefraDB
	countResp, err := s.client.Execute(ctx, countQuery, vars)
	if err != nil {
		return nil, fmt.Errorf("count notes: %w", err)
	}
	if msg := countResp.Error(); msg != "" {
		return nil, fmt.Errorf("count notes: %s", msg)
	}
	total := len(docsFrom(countResp.Data, collectionNote))

	offset := (page - 1) * limit
	pageQuery := fmt.Sprintf(`%s{ %s(%sorder: {created_at: DESC}, limit: %d, offset: %d) { %s } }`,
		varDefs, collectionNote, filter, limit, offset, joinFields(noteFields))
	resp, err := s.client.Execute(ctx, pageQuery, vars)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	if msg := resp.Error(); msg != "" {
		return nil, fmt.Errorf("list notes: %s", msg)
	}

	docs := docsFrom(resp.Data, collectionNote)
	notes := make([]types.Note, 0, len(docs))
	for _, d := range docs {
		notes = append(notes, *parseNoteRecord(d))
	}
	return &NotesPage{Notes: notes, Total: total, Page: page, Limit: limit}, nil
}

func (s *Defra) ListNotesByWork(ctx context.Context, workID string) ([]types.Note, error) {
	resp, err := defra.NewQuery(collectionNote).
		Filter("work_id", workID).
		Fields(noteFields...).
		OrderBy("created_at", "ASC").
		Execute(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("list notes by work: %w", err)
	}
	if msg := resp.Error(); msg != "" {
		return nil, fmt.Errorf("list notes by work: %s", msg)
	}
	docs := docsFrom(resp.Data, collectionNote)
	notes := make([]types.Note, 0, len(docs))
	for _, d := range docs {
		notes = append(notes, *parseNoteRecord(d))
	}
	return notes, nil
}

func (s *Defra) ListAllNotes(ctx context.Context) ([]types.Note, error) {
	resp, err := defra.NewQuery(collectionNote).
		Fields(noteFields...).
		OrderBy("created_at", "ASC").
		Execute(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("list all notes: %w", err)
	}
	if msg := resp.Error(); msg != "" {
		return nil, fmt.Errorf("list all notes: %s", msg)
	}
	docs := docsFrom(resp.Data, collectionNote)
	notes := make([]types.Note, 0, len(docs))
	for _, d := range docs {
		notes = append(notes, *parseNoteRecord(d))
	}
	return notes, nil
}

func (s *Defra) DeleteNotesByChapter(ctx context.Context, workID, chapterID string) error {
	filter := map[string]any{
		"work_id":    map[string]any{"_eq": workID},
		"chapter_id": map[string]any{"_eq": chapterID},
	}
	noteIDs, err := s.noteIDs(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete notes by chapter: %w", err)
	}
	if len(noteIDs) == 0 {
		return nil
	}
	if _, err := s.client.DeleteMany(ctx, collectionNote, filter); err != nil {
		return fmt.Errorf("delete notes by chapter: %w", err)
	}
	if err := s.pruneGraph(ctx, noteIDs); err != nil {
		return fmt.Errorf("delete notes by chapter: graph: %w", err)
	}
	return nil
}

// noteIDs returns the entity ids of notes matching the filter.
func (s *Defra) noteIDs(ctx context.Context, filter map[string]any) ([]string, error) {
	filterGQL, err := defra.MapToInput(filter)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`{ %s(filter: %s, limit: 0) { id } }`, collectionNote, filterGQL)
	resp, err := s.client.Execute(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	if msg := resp.Error(); msg != "" {
		return nil, errors.New(msg)
	}
	docs := docsFrom(resp.Data, collectionNote)
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		if id := getString(d, "id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

var analysisFields = []string{
	"id", "work_id", "core_themes", "key_takeaways", "mental_models", "practical_applications",
}

// --- Analysis ---

func (s *Defra) GetAnalysis(ctx context.Context, workID string) (*types.Analysis, error) {
	doc, err := s.queryOne(ctx, collectionAnalysis, "work_id", workID, analysisFields)
	if err != nil {
		return nil, err
	}
	return parseAnalysisRecord(doc), nil
}

func (s *Defra) SaveAnalysis(ctx context.Context, a *types.Analysis) error {
	if a.ID == "" {
		return fmt.Errorf("save analysis: missing id")
	}
	fields := map[string]any{
		"work_id":                a.WorkID,
		"core_themes":            a.CoreThemes,
		"key_takeaways":          a.KeyTakeaways,
		"mental_models":          a.MentalModels,
		"practical_applications": a.PracticalApplications,
	}
	// One analysis per work: upsert keyed on work_id so regeneration
	// overwrites rather than accumulating documents.
	filter := map[string]any{"work_id": map[string]any{"_eq": a.WorkID}}
	if _, err := s.client.Upsert(ctx, collectionAnalysis, filter, withID(fields, a.ID), fields); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

// --- Graph singleton ---

func (s *Defra) GetGraph(ctx context.Context) (*types.GraphData, error) {
	return s.fetchGraph(ctx)
}

func (s *Defra) SaveGraph(ctx context.Context, g *types.GraphData) error {
	s.graphMu.Lock()
	defer s.graphMu.Unlock()
	return s.putGraph(ctx, g)
}

func (s *Defra) MutateGraph(ctx context.Context, fn func(*types.GraphData) error) (*types.GraphData, error) {
	s.graphMu.Lock()
	defer s.graphMu.Unlock()

	g, err := s.fetchGraph(ctx)
	if errors.Is(err, ErrNotFound) {
		g = types.NewGraphData()
	} else if err != nil {
		return nil, err
	}
	if err := fn(g); err != nil {
		return nil, err
	}
	if err := s.putGraph(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Defra) fetchGraph(ctx context.Context) (*types.GraphData, error) {
	doc, err := s.queryOne(ctx, collectionGraph, "id", graphDocID, []string{"id", "data"})
	if err != nil {
		return nil, err
	}
	g := types.NewGraphData()
	if blob := getString(doc, "data"); blob != "" {
		if err := json.Unmarshal([]byte(blob), g); err != nil {
			return nil, fmt.Errorf("get graph: decode: %w", err)
		}
	}
	if g.Nodes == nil {
		g.Nodes = map[string]types.GraphNode{}
	}
	if g.Edges == nil {
		g.Edges = []types.GraphEdge{}
	}
	return g, nil
}

func (s *Defra) putGraph(ctx context.Context, g *types.GraphData) error {
	blob, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("save graph: encode: %w", err)
	}
	fields := map[string]any{
		"data":       string(blob),
		"updated_at": formatTime(time.Now().UTC()),
	}
	if _, err := s.client.Upsert(ctx, collectionGraph, idFilter(graphDocID), withID(fields, graphDocID), fields); err != nil {
		return fmt.Errorf("save graph: %w", err)
	}
	return nil
}

// pruneGraph drops nodes for the given note ids and every edge touching them.
func (s *Defra) pruneGraph(ctx context.Context, noteIDs []string) error {
	if len(noteIDs) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(noteIDs))
	for _, id := range noteIDs {
		drop[id] = true
	}

	s.graphMu.Lock()
	defer s.graphMu.Unlock()

	g, err := s.fetchGraph(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	for id := range drop {
		delete(g.Nodes, id)
	}
	kept := make([]types.GraphEdge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if drop[e.From] || drop[e.To] {
			continue
		}
		kept = append(kept, e)
	}
	g.Edges = kept

	return s.putGraph(ctx, g)
}

// --- Folder singleton ---

func (s *Defra) GetFolders(ctx context.Context) (*types.FolderSet, error) {
	doc, err := s.queryOne(ctx, collectionFolderSet, "id", foldersDocID, []string{"id", "folders", "updated_at"})
	if err != nil {
		return nil, err
	}
	fs := &types.FolderSet{}
	if blob := getString(doc, "folders"); blob != "" {
		if err := json.Unmarshal([]byte(blob), &fs.Folders); err != nil {
			return nil, fmt.Errorf("get folders: decode: %w", err)
		}
	}
	fs.UpdatedAt = getTime(doc, "updated_at")
	return fs, nil
}

func (s *Defra) SaveFolders(ctx context.Context, fs *types.FolderSet) error {
	blob, err := json.Marshal(fs.Folders)
	if err != nil {
		return fmt.Errorf("save folders: encode: %w", err)
	}
	fields := map[string]any{
		"folders":    string(blob),
		"updated_at": formatTime(time.Now().UTC()),
	}
	if _, err := s.client.Upsert(ctx, collectionFolderSet, idFilter(foldersDocID), withID(fields, foldersDocID), fields); err != nil {
		return fmt.Errorf("save folders: %w", err)
	}
	return nil
}

var jobRecordFields = []string{
	"id", "job_type", "work_id", "chapter_id", "status", "error", "created_at", "updated_at",
}

// --- Job records ---

func (s *Defra) SaveJobRecord(ctx context.Context, r *types.JobRecord) error {
	if r.ID == "" {
		return fmt.Errorf("save job record: missing id")
	}
	fields := map[string]any{
		"job_type":   r.Type,
		"work_id":    r.WorkID,
		"chapter_id": r.ChapterID,
		"status":     string(r.Status),
		"error":      r.Error,
		"created_at": formatTime(r.CreatedAt),
		"updated_at": formatTime(r.UpdatedAt),
	}
	if _, err := s.client.Upsert(ctx, collectionJobRecord, idFilter(r.ID), withID(fields, r.ID), fields); err != nil {
		return fmt.Errorf("save job record: %w", err)
	}
	return nil
}

func (s *Defra) UpdateJobRecord(ctx context.Context, id string, status types.JobRecordStatus, errMsg string) error {
	input := map[string]any{
		"status":     string(status),
		"updated_at": formatTime(time.Now().UTC()),
	}
	if errMsg != "" {
		input["error"] = errMsg
	}
	ids, err := s.client.UpdateMany(ctx, collectionJobRecord, idFilter(id), input)
	if err != nil {
		return fmt.Errorf("update job record %s: %w", id, err)
	}
	if len(ids) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Defra) ListJobRecords(ctx context.Context, limit int) ([]types.JobRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	resp, err := defra.NewQuery(collectionJobRecord).
		Fields(jobRecordFields...).
		OrderBy("created_at", "DESC").
		Limit(limit).
		Execute(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("list job records: %w", err)
	}
	if msg := resp.Error(); msg != "" {
		return nil, fmt.Errorf("list job records: %s", msg)
	}
	docs := docsFrom(resp.Data, collectionJobRecord)
	records := make([]types.JobRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, *parseJobRecord(d))
	}
	return records, nil
}

// --- Query plumbing ---

// queryOne fetches the first document where field equals value.
func (s *Defra) queryOne(ctx context.Context, collection, field, value string, fields []string) (map[string]any, error) {
	resp, err := defra.NewQuery(collection).
		Filter(field, value).
		Fields(fields...).
		Limit(1).
		Execute(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	if msg := resp.Error(); msg != "" {
		return nil, fmt.Errorf("query %s: %s", collection, msg)
	}
	docs := docsFrom(resp.Data, collection)
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// docsFrom extracts the document list for a collection from response data.
func docsFrom(data map[string]any, collection string) []map[string]any {
	raw, ok := data[collection].([]any)
	if !ok {
		return nil
	}
	docs := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			docs = append(docs, m)
		}
	}
	return docs
}

func idFilter(id string) map[string]any {
	return map[string]any{"id": map[string]any{"_eq": id}}
}

// withID copies fields and adds the id, for the create side of an upsert.
func withID(fields map[string]any, id string) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["id"] = id
	return out
}

func joinFields(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += " "
		}
		out += f
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
