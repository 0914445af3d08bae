// Package graph implements edge operations and link queries over the
// knowledge-graph singleton. All mutations go through the store's
// MutateGraph so concurrent writers serialize on one document.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomehq/tome/internal/store"
	"github.com/tomehq/tome/internal/types"
)

// Link is one resolved relation from the perspective of a queried note.
type Link struct {
	NoteID     string              `json:"noteId"`
	Title      string              `json:"title"`
	Reason     string              `json:"reason,omitempty"`
	Confidence float64             `json:"confidence"`
	CreatedBy  types.EdgeOrigin    `json:"createdBy"`
	Direction  types.EdgeDirection `json:"direction"`
}

// Links groups a note's relations by orientation.
type Links struct {
	Outgoing []Link `json:"outgoing"`
	Incoming []Link `json:"incoming"`
}

// Service exposes graph reads and writes over a Store.
type Service struct {
	store store.Store
}

// NewService returns a graph service backed by st.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// AddNode upserts the graph projection of a note: its title and tags are
// cached on the node so link listings survive note lookups that miss.
func (s *Service) AddNode(ctx context.Context, note *types.Note) error {
	_, err := s.store.MutateGraph(ctx, func(g *types.GraphData) error {
		g.Nodes[note.ID] = types.GraphNode{
			Title:     note.Title,
			Tags:      note.Tags,
			CreatedAt: time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add graph node: %w", err)
	}
	return nil
}

// AddEdge inserts a relation between two existing notes. Insertion is
// idempotent: an identical (from,to) pair is a no-op, and so is the reverse
// (to,from) pair when either edge is bidirectional. Empty CreatedBy and
// Direction default to manual and directed.
func (s *Service) AddEdge(ctx context.Context, edge types.GraphEdge) error {
	if edge.From == "" || edge.To == "" {
		return fmt.Errorf("edge endpoints must be set")
	}
	if edge.From == edge.To {
		return fmt.Errorf("edge cannot link a note to itself")
	}
	if edge.CreatedBy == "" {
		edge.CreatedBy = types.EdgeManual
	}
	if edge.Direction == "" {
		edge.Direction = types.Directed
	}

	fromNote, err := s.store.GetNote(ctx, edge.From)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("note %s not found", edge.From)
		}
		return fmt.Errorf("failed to load note %s: %w", edge.From, err)
	}
	toNote, err := s.store.GetNote(ctx, edge.To)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("note %s not found", edge.To)
		}
		return fmt.Errorf("failed to load note %s: %w", edge.To, err)
	}

	_, err = s.store.MutateGraph(ctx, func(g *types.GraphData) error {
		if hasEdge(g, edge) {
			return nil
		}
		ensureNode(g, fromNote)
		ensureNode(g, toNote)
		g.Edges = append(g.Edges, edge)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add graph edge: %w", err)
	}
	return nil
}

// RemoveEdge deletes the relation between two notes in both orientations.
func (s *Service) RemoveEdge(ctx context.Context, from, to string) error {
	_, err := s.store.MutateGraph(ctx, func(g *types.GraphData) error {
		kept := g.Edges[:0]
		for _, e := range g.Edges {
			if (e.From == from && e.To == to) || (e.From == to && e.To == from) {
				continue
			}
			kept = append(kept, e)
		}
		g.Edges = kept
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove graph edge: %w", err)
	}
	return nil
}

// LinksOf returns the note's relations grouped by orientation. Titles are
// resolved from the note documents, falling back to the cached node title
// for endpoints whose note lookup misses.
func (s *Service) LinksOf(ctx context.Context, noteID string) (*Links, error) {
	g, err := s.store.GetGraph(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &Links{}, nil
		}
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}

	links := &Links{}
	for _, e := range g.Edges {
		switch noteID {
		case e.From:
			links.Outgoing = append(links.Outgoing, s.resolveLink(ctx, g, e, e.To))
		case e.To:
			links.Incoming = append(links.Incoming, s.resolveLink(ctx, g, e, e.From))
		}
	}
	return links, nil
}

func (s *Service) resolveLink(ctx context.Context, g *types.GraphData, e types.GraphEdge, other string) Link {
	title := ""
	if note, err := s.store.GetNote(ctx, other); err == nil {
		title = note.Title
	} else if node, ok := g.Nodes[other]; ok {
		title = node.Title
	}
	return Link{
		NoteID:     other,
		Title:      title,
		Reason:     e.Reason,
		Confidence: e.Confidence,
		CreatedBy:  e.CreatedBy,
		Direction:  e.Direction,
	}
}

// hasEdge reports whether the graph already carries the relation: the same
// (from,to) pair, or the reverse pair when either side is bidirectional.
func hasEdge(g *types.GraphData, edge types.GraphEdge) bool {
	for _, e := range g.Edges {
		if e.From == edge.From && e.To == edge.To {
			return true
		}
		if e.From == edge.To && e.To == edge.From &&
			(e.Direction == types.Bidirectional || edge.Direction == types.Bidirectional) {
			return true
		}
	}
	return false
}

func ensureNode(g *types.GraphData, note *types.Note) {
	if _, ok := g.Nodes[note.ID]; ok {
		return
	}
	g.Nodes[note.ID] = types.GraphNode{
		Title:     note.Title,
		Tags:      note.Tags,
		CreatedAt: time.Now().UTC(),
	}
}
