package types

import "time"

// EdgeOrigin records whether an edge was user-created or AI-suggested.
type EdgeOrigin string

const (
	EdgeManual EdgeOrigin = "manual"
	EdgeAI     EdgeOrigin = "ai"
)

// EdgeDirection distinguishes one-way from mutual relations.
type EdgeDirection string

const (
	Directed      EdgeDirection = "directed"
	Bidirectional EdgeDirection = "bidirectional"
)

// GraphNode is the graph-side projection of a note. Title and tags are
// cached here so link listings survive even when the note lookup misses.
type GraphNode struct {
	Title     string    `json:"title"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// GraphEdge is a relation between two notes.
type GraphEdge struct {
	From       string        `json:"from"`
	To         string        `json:"to"`
	Reason     string        `json:"reason,omitempty"`
	CreatedBy  EdgeOrigin    `json:"createdBy"`
	Confidence float64       `json:"confidence"`
	Direction  EdgeDirection `json:"direction"`
}

// GraphData is the knowledge graph singleton: one mutable document, all
// writes read-modify-write under the store's graph lock.
type GraphData struct {
	Nodes map[string]GraphNode `json:"nodes"`
	Edges []GraphEdge          `json:"edges"`
}

// NewGraphData returns an empty graph with allocated containers.
func NewGraphData() *GraphData {
	return &GraphData{Nodes: map[string]GraphNode{}, Edges: []GraphEdge{}}
}

// Folder groups notes under a thematic name. A note appears in at most one
// folder; unassigned notes belong to the implicit Uncategorized folder.
type Folder struct {
	Name    string   `json:"name"`
	NoteIDs []string `json:"noteIds"`
}

// FolderSet is the folder-structure singleton.
type FolderSet struct {
	Folders   []Folder  `json:"folders"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Uncategorized is the implicit fallback folder name.
const Uncategorized = "Uncategorized"

// Assigned returns the set of note ids already placed in some folder.
func (fs *FolderSet) Assigned() map[string]bool {
	out := make(map[string]bool)
	for _, f := range fs.Folders {
		for _, id := range f.NoteIDs {
			out[id] = true
		}
	}
	return out
}

// Names returns the folder names in order, excluding Uncategorized.
func (fs *FolderSet) Names() []string {
	var out []string
	for _, f := range fs.Folders {
		if f.Name != Uncategorized {
			out = append(out, f.Name)
		}
	}
	return out
}

// Add places a note id under the named folder, creating the folder if
// needed. It does not check for prior assignment elsewhere.
func (fs *FolderSet) Add(name, noteID string) {
	for i := range fs.Folders {
		if fs.Folders[i].Name == name {
			fs.Folders[i].NoteIDs = append(fs.Folders[i].NoteIDs, noteID)
			return
		}
	}
	fs.Folders = append(fs.Folders, Folder{Name: name, NoteIDs: []string{noteID}})
}
