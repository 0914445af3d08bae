package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tomehq/tome/internal/types"
)

func seedWork(t *testing.T, m *Memory, workID string, chapterIDs ...string) {
	t.Helper()
	ctx := context.Background()

	w := &types.Work{
		ID:         workID,
		Title:      "Test Work",
		Kind:       types.KindNonfiction,
		SourceKind: types.SourceOther,
		ChapterIDs: chapterIDs,
		Status:     types.WorkProcessing,
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.SaveWork(ctx, w); err != nil {
		t.Fatalf("SaveWork() error = %v", err)
	}

	for i, cid := range chapterIDs {
		c := &types.Chapter{
			ID:           cid,
			WorkID:       workID,
			ChapterIndex: i,
			RawText:      "chapter text",
			Overview:     types.StatusPending,
			Analysis:     types.StatusPending,
			Notes:        types.StatusPending,
		}
		if err := m.SaveChapter(ctx, c); err != nil {
			t.Fatalf("SaveChapter() error = %v", err)
		}
	}
}

func TestMemory_WorkRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.GetWork(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetWork(missing) error = %v, want ErrNotFound", err)
	}

	seedWork(t, m, "w1", "c1", "c2")

	w, err := m.GetWork(ctx, "w1")
	if err != nil {
		t.Fatalf("GetWork() error = %v", err)
	}
	if w.Title != "Test Work" {
		t.Errorf("Title = %q", w.Title)
	}
	if len(w.ChapterIDs) != 2 {
		t.Errorf("ChapterIDs = %v", w.ChapterIDs)
	}

	// Mutating the returned copy must not affect the store.
	w.ChapterIDs[0] = "tampered"
	again, _ := m.GetWork(ctx, "w1")
	if again.ChapterIDs[0] != "c1" {
		t.Error("store state aliased by returned copy")
	}
}

func TestMemory_FindWorkByHash(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	w := &types.Work{ID: "w1", SourceHash: "abc123", CreatedAt: time.Now()}
	if err := m.SaveWork(ctx, w); err != nil {
		t.Fatalf("SaveWork() error = %v", err)
	}

	got, err := m.FindWorkByHash(ctx, "abc123")
	if err != nil {
		t.Fatalf("FindWorkByHash() error = %v", err)
	}
	if got.ID != "w1" {
		t.Errorf("ID = %q, want w1", got.ID)
	}

	if _, err := m.FindWorkByHash(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindWorkByHash(nope) error = %v, want ErrNotFound", err)
	}
}

func TestMemory_DeleteWork_Cascades(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	seedWork(t, m, "w1", "c1")
	seedWork(t, m, "w2", "c2")

	sum := &types.Summary{ID: "s1", ChapterID: "c1", WorkID: "w1", MainIdea: "idea"}
	if err := m.SaveSummary(ctx, sum); err != nil {
		t.Fatal(err)
	}
	for i, n := range []types.Note{
		{ID: "n1", WorkID: "w1", ChapterID: "c1", Embedding: []float32{1, 0}},
		{ID: "n2", WorkID: "w1", ChapterID: "c1", Embedding: []float32{0, 1}},
		{ID: "n3", WorkID: "w2", ChapterID: "c2", Embedding: []float32{1, 1}},
	} {
		n.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		note := n
		if err := m.SaveNote(ctx, &note); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.SaveAnalysis(ctx, &types.Analysis{ID: "a1", WorkID: "w1"}); err != nil {
		t.Fatal(err)
	}
	_, err := m.MutateGraph(ctx, func(g *types.GraphData) error {
		g.Nodes["n1"] = types.GraphNode{Title: "one"}
		g.Nodes["n2"] = types.GraphNode{Title: "two"}
		g.Nodes["n3"] = types.GraphNode{Title: "three"}
		g.Edges = append(g.Edges,
			types.GraphEdge{From: "n1", To: "n2", CreatedBy: types.EdgeManual},
			types.GraphEdge{From: "n2", To: "n3", CreatedBy: types.EdgeAI},
			types.GraphEdge{From: "n3", To: "n3", CreatedBy: types.EdgeManual},
		)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.DeleteWork(ctx, "w1"); err != nil {
		t.Fatalf("DeleteWork() error = %v", err)
	}

	if _, err := m.GetWork(ctx, "w1"); !errors.Is(err, ErrNotFound) {
		t.Error("work still present")
	}
	if _, err := m.GetChapter(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Error("chapter still present")
	}
	if _, err := m.GetSummary(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Error("summary still present")
	}
	if _, err := m.GetNote(ctx, "n1"); !errors.Is(err, ErrNotFound) {
		t.Error("note n1 still present")
	}
	if _, err := m.GetNote(ctx, "n2"); !errors.Is(err, ErrNotFound) {
		t.Error("note n2 still present")
	}
	if _, err := m.GetAnalysis(ctx, "w1"); !errors.Is(err, ErrNotFound) {
		t.Error("analysis still present")
	}

	// The other work survives untouched.
	if _, err := m.GetWork(ctx, "w2"); err != nil {
		t.Errorf("unrelated work deleted: %v", err)
	}
	if _, err := m.GetNote(ctx, "n3"); err != nil {
		t.Errorf("unrelated note deleted: %v", err)
	}

	// Graph retains only what never touched w1's notes.
	g, err := m.GetGraph(ctx)
	if err != nil {
		t.Fatalf("GetGraph() error = %v", err)
	}
	if _, ok := g.Nodes["n1"]; ok {
		t.Error("graph node n1 not pruned")
	}
	if _, ok := g.Nodes["n2"]; ok {
		t.Error("graph node n2 not pruned")
	}
	if _, ok := g.Nodes["n3"]; !ok {
		t.Error("graph node n3 wrongly pruned")
	}
	for _, e := range g.Edges {
		if e.From == "n1" || e.To == "n1" || e.From == "n2" || e.To == "n2" {
			t.Errorf("edge %s->%s not pruned", e.From, e.To)
		}
	}
	if len(g.Edges) != 1 {
		t.Errorf("edges = %d, want 1", len(g.Edges))
	}
}

func TestMemory_DeleteWork_NotFound(t *testing.T) {
	m := NewMemory()
	if err := m.DeleteWork(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteWork(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestMemory_DeleteNotesByChapter(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, n := range []types.Note{
		{ID: "n1", WorkID: "w1", ChapterID: "c1"},
		{ID: "n2", WorkID: "w1", ChapterID: "c1"},
		{ID: "n3", WorkID: "w1", ChapterID: "c2"},
	} {
		note := n
		if err := m.SaveNote(ctx, &note); err != nil {
			t.Fatal(err)
		}
	}
	_, err := m.MutateGraph(ctx, func(g *types.GraphData) error {
		g.Nodes["n1"] = types.GraphNode{Title: "one"}
		g.Nodes["n3"] = types.GraphNode{Title: "three"}
		g.Edges = append(g.Edges, types.GraphEdge{From: "n1", To: "n3"})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.DeleteNotesByChapter(ctx, "w1", "c1"); err != nil {
		t.Fatalf("DeleteNotesByChapter() error = %v", err)
	}

	if _, err := m.GetNote(ctx, "n1"); !errors.Is(err, ErrNotFound) {
		t.Error("n1 still present")
	}
	if _, err := m.GetNote(ctx, "n3"); err != nil {
		t.Errorf("n3 deleted: %v", err)
	}

	g, _ := m.GetGraph(ctx)
	if _, ok := g.Nodes["n1"]; ok {
		t.Error("node n1 not pruned")
	}
	if len(g.Edges) != 0 {
		t.Errorf("edges = %d, want 0", len(g.Edges))
	}
}

func TestMemory_UpdateChapter(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedWork(t, m, "w1", "c1")

	t.Run("stage status patch", func(t *testing.T) {
		got, err := m.UpdateChapter(ctx, "c1", StagePatch(types.StageOverview, types.StatusProcessing))
		if err != nil {
			t.Fatalf("UpdateChapter() error = %v", err)
		}
		if got.Overview != types.StatusProcessing {
			t.Errorf("Overview = %s, want processing", got.Overview)
		}
		if got.Analysis != types.StatusPending {
			t.Errorf("Analysis = %s, want pending (untouched)", got.Analysis)
		}
		if got.UpdatedAt.IsZero() {
			t.Error("UpdatedAt not stamped")
		}
	})

	t.Run("error set and cleared", func(t *testing.T) {
		patch := StagePatch(types.StageOverview, types.StatusFailed).WithLastError("model exploded")
		got, err := m.UpdateChapter(ctx, "c1", patch)
		if err != nil {
			t.Fatal(err)
		}
		if got.LastError != "model exploded" {
			t.Errorf("LastError = %q", got.LastError)
		}

		got, err = m.UpdateChapter(ctx, "c1", StagePatch(types.StageOverview, types.StatusProcessing).WithLastError(""))
		if err != nil {
			t.Fatal(err)
		}
		if got.LastError != "" {
			t.Errorf("LastError = %q, want cleared", got.LastError)
		}
	})

	t.Run("summary ref", func(t *testing.T) {
		ref := "s1"
		got, err := m.UpdateChapter(ctx, "c1", ChapterPatch{SummaryRef: &ref})
		if err != nil {
			t.Fatal(err)
		}
		if got.SummaryRef != "s1" {
			t.Errorf("SummaryRef = %q", got.SummaryRef)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := m.UpdateChapter(ctx, "ghost", StagePatch(types.StageNotes, types.StatusSkipped))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestMemory_ListChaptersByWork_Ordered(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	// Insert out of order.
	for _, c := range []types.Chapter{
		{ID: "c3", WorkID: "w1", ChapterIndex: 2},
		{ID: "c1", WorkID: "w1", ChapterIndex: 0},
		{ID: "c2", WorkID: "w1", ChapterIndex: 1},
		{ID: "cx", WorkID: "w2", ChapterIndex: 0},
	} {
		ch := c
		if err := m.SaveChapter(ctx, &ch); err != nil {
			t.Fatal(err)
		}
	}

	got, err := m.ListChaptersByWork(ctx, "w1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"c1", "c2", "c3"} {
		if got[i].ID != want {
			t.Errorf("got[%d] = %s, want %s", i, got[i].ID, want)
		}
	}
}

func TestMemory_ListNotes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		n := &types.Note{
			ID:        fmt.Sprintf("n%02d", i),
			Title:     fmt.Sprintf("Note %02d", i),
			Content:   "plain content",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if i%5 == 0 {
			n.Content = "special needle content"
		}
		if err := m.SaveNote(ctx, n); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("pagination", func(t *testing.T) {
		page, err := m.ListNotes(ctx, 1, 10, "")
		if err != nil {
			t.Fatal(err)
		}
		if page.Total != 25 {
			t.Errorf("Total = %d, want 25", page.Total)
		}
		if len(page.Notes) != 10 {
			t.Errorf("len = %d, want 10", len(page.Notes))
		}
		// Newest first.
		if page.Notes[0].ID != "n24" {
			t.Errorf("first = %s, want n24", page.Notes[0].ID)
		}

		last, err := m.ListNotes(ctx, 3, 10, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(last.Notes) != 5 {
			t.Errorf("last page len = %d, want 5", len(last.Notes))
		}

		empty, err := m.ListNotes(ctx, 9, 10, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(empty.Notes) != 0 {
			t.Errorf("past-the-end page len = %d, want 0", len(empty.Notes))
		}
		if empty.Total != 25 {
			t.Errorf("past-the-end Total = %d, want 25", empty.Total)
		}
	})

	t.Run("search is case-insensitive over title and content", func(t *testing.T) {
		page, err := m.ListNotes(ctx, 1, 50, "NEEDLE")
		if err != nil {
			t.Fatal(err)
		}
		if page.Total != 5 {
			t.Errorf("Total = %d, want 5", page.Total)
		}

		byTitle, err := m.ListNotes(ctx, 1, 50, "note 07")
		if err != nil {
			t.Fatal(err)
		}
		if byTitle.Total != 1 {
			t.Errorf("title search Total = %d, want 1", byTitle.Total)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		page, err := m.ListNotes(ctx, 0, 0, "")
		if err != nil {
			t.Fatal(err)
		}
		if page.Page != 1 || page.Limit != DefaultNotesLimit {
			t.Errorf("page=%d limit=%d, want 1/%d", page.Page, page.Limit, DefaultNotesLimit)
		}
	})
}

func TestMemory_GraphSingleton(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.GetGraph(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetGraph on empty store error = %v, want ErrNotFound", err)
	}

	// MutateGraph starts from an empty graph when absent.
	g, err := m.MutateGraph(ctx, func(g *types.GraphData) error {
		g.Nodes["n1"] = types.GraphNode{Title: "first"}
		return nil
	})
	if err != nil {
		t.Fatalf("MutateGraph() error = %v", err)
	}
	if len(g.Nodes) != 1 {
		t.Errorf("nodes = %d, want 1", len(g.Nodes))
	}

	got, err := m.GetGraph(ctx)
	if err != nil {
		t.Fatalf("GetGraph() error = %v", err)
	}
	if got.Nodes["n1"].Title != "first" {
		t.Errorf("node title = %q", got.Nodes["n1"].Title)
	}

	// A failing mutator leaves the stored graph unchanged.
	boom := errors.New("boom")
	if _, err := m.MutateGraph(ctx, func(g *types.GraphData) error {
		g.Nodes["n2"] = types.GraphNode{}
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("MutateGraph() error = %v, want boom", err)
	}
	got, _ = m.GetGraph(ctx)
	if _, ok := got.Nodes["n2"]; ok {
		t.Error("failed mutation was persisted")
	}
}

func TestMemory_Folders(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.GetFolders(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetFolders on empty store error = %v, want ErrNotFound", err)
	}

	fs := &types.FolderSet{}
	fs.Add("Productivity", "n1")
	fs.Add("Productivity", "n2")
	fs.Add(types.Uncategorized, "n3")
	if err := m.SaveFolders(ctx, fs); err != nil {
		t.Fatal(err)
	}

	got, err := m.GetFolders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Folders) != 2 {
		t.Fatalf("folders = %d, want 2", len(got.Folders))
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped")
	}
	assigned := got.Assigned()
	if !assigned["n1"] || !assigned["n3"] {
		t.Errorf("Assigned() = %v", assigned)
	}
	names := got.Names()
	if len(names) != 1 || names[0] != "Productivity" {
		t.Errorf("Names() = %v", names)
	}
}

func TestMemory_JobRecords(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		r := &types.JobRecord{
			ID:        fmt.Sprintf("j%d", i),
			Type:      "overview",
			WorkID:    "w1",
			Status:    types.JobQueued,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := m.SaveJobRecord(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	if err := m.UpdateJobRecord(ctx, "j1", types.JobFailed, "broker hiccup"); err != nil {
		t.Fatalf("UpdateJobRecord() error = %v", err)
	}
	if err := m.UpdateJobRecord(ctx, "ghost", types.JobRunning, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateJobRecord(ghost) error = %v, want ErrNotFound", err)
	}

	records, err := m.ListJobRecords(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	// Newest first.
	if records[0].ID != "j2" {
		t.Errorf("first = %s, want j2", records[0].ID)
	}
	for _, r := range records {
		if r.ID == "j1" {
			if r.Status != types.JobFailed || r.Error != "broker hiccup" {
				t.Errorf("j1 = %+v", r)
			}
		}
	}

	limited, err := m.ListJobRecords(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("limited = %d, want 2", len(limited))
	}
}

func TestStagePatch(t *testing.T) {
	tests := []struct {
		stage types.Stage
		check func(ChapterPatch) *types.StageStatus
	}{
		{types.StageOverview, func(p ChapterPatch) *types.StageStatus { return p.Overview }},
		{types.StageAnalysis, func(p ChapterPatch) *types.StageStatus { return p.Analysis }},
		{types.StageNotes, func(p ChapterPatch) *types.StageStatus { return p.Notes }},
	}

	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			p := StagePatch(tt.stage, types.StatusCompleted)
			got := tt.check(p)
			if got == nil || *got != types.StatusCompleted {
				t.Errorf("StagePatch(%s) did not set the right field", tt.stage)
			}
		})
	}

	if !(ChapterPatch{}).Empty() {
		t.Error("zero patch should be Empty")
	}
	if StagePatch(types.StageNotes, types.StatusSkipped).Empty() {
		t.Error("stage patch should not be Empty")
	}
}
