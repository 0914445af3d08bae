package graph

import (
	"context"
	"testing"
	"time"

	"github.com/tomehq/tome/internal/store"
	"github.com/tomehq/tome/internal/types"
)

func seedNotes(t *testing.T, st store.Store, ids ...string) {
	t.Helper()
	ctx := context.Background()
	for _, id := range ids {
		note := &types.Note{
			ID:        id,
			Title:     "title " + id,
			Content:   "content " + id,
			WorkID:    "w1",
			ChapterID: "c1",
			CreatedAt: time.Now().UTC(),
		}
		if err := st.SaveNote(ctx, note); err != nil {
			t.Fatalf("SaveNote(%s): %v", id, err)
		}
	}
}

func edgeCount(t *testing.T, st store.Store) int {
	t.Helper()
	g, err := st.GetGraph(context.Background())
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	return len(g.Edges)
}

func TestAddEdgeIdempotent(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate pair is a no-op", func(t *testing.T) {
		st := store.NewMemory()
		seedNotes(t, st, "a", "b")
		svc := NewService(st)

		edge := types.GraphEdge{From: "a", To: "b", Reason: "same concept", CreatedBy: types.EdgeAI, Confidence: 0.8, Direction: types.Directed}
		if err := svc.AddEdge(ctx, edge); err != nil {
			t.Fatalf("first AddEdge: %v", err)
		}
		if err := svc.AddEdge(ctx, edge); err != nil {
			t.Fatalf("second AddEdge: %v", err)
		}
		if n := edgeCount(t, st); n != 1 {
			t.Errorf("expected 1 edge, got %d", n)
		}
	})

	t.Run("reverse pair with bidirectional is a no-op", func(t *testing.T) {
		st := store.NewMemory()
		seedNotes(t, st, "a", "b")
		svc := NewService(st)

		if err := svc.AddEdge(ctx, types.GraphEdge{From: "a", To: "b", Direction: types.Bidirectional, CreatedBy: types.EdgeManual, Confidence: 1}); err != nil {
			t.Fatalf("AddEdge(a,b): %v", err)
		}
		if err := svc.AddEdge(ctx, types.GraphEdge{From: "b", To: "a", Direction: types.Bidirectional, CreatedBy: types.EdgeManual, Confidence: 1}); err != nil {
			t.Fatalf("AddEdge(b,a): %v", err)
		}
		if n := edgeCount(t, st); n != 1 {
			t.Errorf("expected 1 edge, got %d", n)
		}
	})

	t.Run("reverse directed pairs coexist", func(t *testing.T) {
		st := store.NewMemory()
		seedNotes(t, st, "a", "b")
		svc := NewService(st)

		if err := svc.AddEdge(ctx, types.GraphEdge{From: "a", To: "b", Direction: types.Directed}); err != nil {
			t.Fatalf("AddEdge(a,b): %v", err)
		}
		if err := svc.AddEdge(ctx, types.GraphEdge{From: "b", To: "a", Direction: types.Directed}); err != nil {
			t.Fatalf("AddEdge(b,a): %v", err)
		}
		if n := edgeCount(t, st); n != 2 {
			t.Errorf("expected 2 edges, got %d", n)
		}
	})
}

func TestAddEdgeValidation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedNotes(t, st, "a")
	svc := NewService(st)

	if err := svc.AddEdge(ctx, types.GraphEdge{From: "a", To: "a"}); err == nil {
		t.Error("expected self-link to fail")
	}
	if err := svc.AddEdge(ctx, types.GraphEdge{From: "a", To: "missing"}); err == nil {
		t.Error("expected missing endpoint to fail")
	}
	if err := svc.AddEdge(ctx, types.GraphEdge{From: "", To: "a"}); err == nil {
		t.Error("expected empty endpoint to fail")
	}
}

func TestRemoveEdgeBothDirections(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedNotes(t, st, "a", "b", "c")
	svc := NewService(st)

	if err := svc.AddEdge(ctx, types.GraphEdge{From: "a", To: "b"}); err != nil {
		t.Fatalf("AddEdge(a,b): %v", err)
	}
	if err := svc.AddEdge(ctx, types.GraphEdge{From: "b", To: "a"}); err != nil {
		t.Fatalf("AddEdge(b,a): %v", err)
	}
	if err := svc.AddEdge(ctx, types.GraphEdge{From: "a", To: "c"}); err != nil {
		t.Fatalf("AddEdge(a,c): %v", err)
	}

	if err := svc.RemoveEdge(ctx, "a", "b"); err != nil {
		t.Fatalf("RemoveEdge: %v", err)
	}

	g, err := st.GetGraph(ctx)
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	if len(g.Edges) != 1 {
		t.Fatalf("expected 1 remaining edge, got %d", len(g.Edges))
	}
	if g.Edges[0].From != "a" || g.Edges[0].To != "c" {
		t.Errorf("wrong edge survived: %+v", g.Edges[0])
	}
}

func TestLinksOf(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedNotes(t, st, "a", "b", "c")
	svc := NewService(st)

	if err := svc.AddEdge(ctx, types.GraphEdge{From: "a", To: "b", Reason: "related", Confidence: 0.9, CreatedBy: types.EdgeAI}); err != nil {
		t.Fatalf("AddEdge(a,b): %v", err)
	}
	if err := svc.AddEdge(ctx, types.GraphEdge{From: "c", To: "a", Reason: "builds on", Confidence: 0.7, CreatedBy: types.EdgeAI}); err != nil {
		t.Fatalf("AddEdge(c,a): %v", err)
	}

	links, err := svc.LinksOf(ctx, "a")
	if err != nil {
		t.Fatalf("LinksOf: %v", err)
	}
	if len(links.Outgoing) != 1 || len(links.Incoming) != 1 {
		t.Fatalf("expected 1 outgoing and 1 incoming, got %d/%d", len(links.Outgoing), len(links.Incoming))
	}
	if links.Outgoing[0].NoteID != "b" || links.Outgoing[0].Title != "title b" {
		t.Errorf("outgoing link wrong: %+v", links.Outgoing[0])
	}
	if links.Incoming[0].NoteID != "c" || links.Incoming[0].Reason != "builds on" {
		t.Errorf("incoming link wrong: %+v", links.Incoming[0])
	}
}

func TestLinksOfFallsBackToNodeTitle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	seedNotes(t, st, "a", "b")
	svc := NewService(st)

	if err := svc.AddEdge(ctx, types.GraphEdge{From: "a", To: "b"}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	// Rebuild a store that carries the graph but not note b, the shape a
	// lookup sees when it races a regenerate. The cached node title should
	// fill in.
	g, err := st.GetGraph(ctx)
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	fresh := store.NewMemory()
	seedNotes(t, fresh, "a")
	if err := fresh.SaveGraph(ctx, g); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}

	links, err := NewService(fresh).LinksOf(ctx, "a")
	if err != nil {
		t.Fatalf("LinksOf: %v", err)
	}
	if len(links.Outgoing) != 1 {
		t.Fatalf("expected 1 outgoing link, got %d", len(links.Outgoing))
	}
	if links.Outgoing[0].Title != "title b" {
		t.Errorf("expected cached node title, got %q", links.Outgoing[0].Title)
	}
}

func TestAddNodeProjectsNote(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := NewService(st)

	note := &types.Note{ID: "n1", Title: "Spaced repetition", Tags: []string{"memory"}}
	if err := svc.AddNode(ctx, note); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	g, err := st.GetGraph(ctx)
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	node, ok := g.Nodes["n1"]
	if !ok {
		t.Fatal("node missing")
	}
	if node.Title != "Spaced repetition" {
		t.Errorf("node title = %q", node.Title)
	}
}
