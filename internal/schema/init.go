package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tomehq/tome/internal/defra"
)

// Initialize registers every collection with DefraDB. Both serve and
// store start run it unconditionally: collections that already exist are
// skipped, so a fresh volume and a restart look the same to callers.
func Initialize(ctx context.Context, client *defra.Client, logger *slog.Logger) error {
	schemas, err := All()
	if err != nil {
		return fmt.Errorf("failed to load schemas: %w", err)
	}

	for _, s := range schemas {
		err := client.AddSchema(ctx, s.SDL)
		switch {
		case err == nil:
			logger.Info("schema added", "name", s.Name)
		case isAlreadyExists(err):
			logger.Debug("schema already exists", "name", s.Name)
		default:
			return fmt.Errorf("failed to add schema %s: %w", s.Name, err)
		}
	}

	return nil
}

// isAlreadyExists matches on the response text; DefraDB is driven over
// HTTP, so there is no typed error to compare against.
func isAlreadyExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already exists")
}
