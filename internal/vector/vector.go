// Package vector implements brute-force cosine similarity search over note
// embeddings. Corpora here are thousands of notes at most, so a linear scan
// is simpler and faster than carrying an ANN index.
package vector

import (
	"fmt"
	"math"
	"sort"

	"github.com/tomehq/tome/internal/types"
)

// Match pairs a corpus id with its similarity to the query.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Cosine returns the cosine similarity of two equal-length vectors.
// Zero-magnitude vectors yield 0 rather than NaN.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, aMag, bMag float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		aMag += float64(a[i]) * float64(a[i])
		bMag += float64(b[i]) * float64(b[i])
	}

	if aMag == 0 || bMag == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(aMag) * math.Sqrt(bMag)), nil
}

// Index is an in-memory similarity corpus. It is built once per notes run
// and queried read-only, so it carries no locking.
type Index struct {
	ids  []string
	vecs [][]float32
}

// New returns an empty index.
func New() *Index {
	return &Index{}
}

// FromNotes builds an index over every note that carries an embedding.
// Notes without embeddings are skipped.
func FromNotes(notes []types.Note) *Index {
	ix := New()
	for _, n := range notes {
		if len(n.Embedding) == 0 {
			continue
		}
		ix.Add(n.ID, n.Embedding)
	}
	return ix
}

// Add appends an entry to the corpus.
func (ix *Index) Add(id string, vec []float32) {
	ix.ids = append(ix.ids, id)
	ix.vecs = append(ix.vecs, vec)
}

// Len returns the number of corpus entries.
func (ix *Index) Len() int {
	return len(ix.ids)
}

// TopK returns up to k corpus entries most similar to the query, ordered by
// descending score. Entries whose id equals exclude, or whose dimensions do
// not match the query, are skipped.
func (ix *Index) TopK(query []float32, k int, exclude string) []Match {
	if k <= 0 || len(query) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(ix.ids))
	for i, id := range ix.ids {
		if id == exclude {
			continue
		}
		score, err := Cosine(query, ix.vecs[i])
		if err != nil {
			continue
		}
		matches = append(matches, Match{ID: id, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
