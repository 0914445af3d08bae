package schema

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed schemas/*.graphql
var schemaFS embed.FS

// Schema represents a DefraDB collection schema.
type Schema struct {
	Name  string // Collection name (e.g., "Work")
	SDL   string // GraphQL SDL definition
	Order int    // Initialization order (lower = first)
}

// registry holds all schemas in dependency order.
// Collections reference each other by plain id strings, so the order is
// mostly cosmetic, but parents still go first for readability.
var registry = []Schema{
	{Name: "Work", Order: 1},
	{Name: "Chapter", Order: 2},   // belongs to Work
	{Name: "Summary", Order: 3},   // one per Chapter
	{Name: "Note", Order: 4},      // extracted from Summary
	{Name: "Analysis", Order: 5},  // one per Work
	{Name: "Graph", Order: 6},     // singleton
	{Name: "FolderSet", Order: 7}, // singleton
	{Name: "JobRecord", Order: 8}, // observability
	{Name: "ModelCall", Order: 9}, // observability
}

// All returns all schemas in dependency order.
// Schemas are loaded from embedded .graphql files.
func All() ([]Schema, error) {
	schemas := make([]Schema, len(registry))
	copy(schemas, registry)

	// Load SDL from embedded files
	for i := range schemas {
		filename := fmt.Sprintf("schemas/%s.graphql", lowercase(schemas[i].Name))
		content, err := schemaFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", schemas[i].Name, err)
		}
		schemas[i].SDL = string(content)
	}

	// Sort by order
	sort.Slice(schemas, func(i, j int) bool {
		return schemas[i].Order < schemas[j].Order
	})

	return schemas, nil
}

// lowercase converts a name to lowercase for filename lookup.
func lowercase(s string) string {
	return strings.ToLower(s)
}
