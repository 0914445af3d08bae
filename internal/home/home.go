package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the tome home directory.
	DefaultDirName = ".tome"

	// SourcesDirName is the subdirectory for ingested source files.
	SourcesDirName = "sources"

	// DefraDirName is the subdirectory mounted into the DefraDB container.
	DefraDirName = "defra"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the tome home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.tome).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// SourcesPath returns the path to the ingested sources directory.
func (d *Dir) SourcesPath() string {
	return filepath.Join(d.path, SourcesDirName)
}

// SourcePath returns the archival path for an ingested source file. Files are
// keyed by work id so re-ingest of a renamed file stays traceable.
func (d *Dir) SourcePath(workID, ext string) string {
	return filepath.Join(d.SourcesPath(), workID+ext)
}

// DefraPath returns the host directory bind-mounted as the DefraDB data root.
func (d *Dir) DefraPath() string {
	return filepath.Join(d.path, DefraDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// PidPath returns the path of the pid file for a managed process or container.
func (d *Dir) PidPath(name string) string {
	return filepath.Join(d.path, name+".pid")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, p := range []string{d.SourcesPath(), d.DefraPath()} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
