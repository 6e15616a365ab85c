// Package registry persists the flow registry, the versioned snapshot of all
// discovered processing flows.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mvp-joe/flowscope/internal/flow"
)

// SchemaVersion is the current registry format version.
const SchemaVersion = "1.0.0"

// ErrRegistryCorrupt indicates that the persisted registry cannot be read,
// parsed, or has an unknown schema version.
var ErrRegistryCorrupt = errors.New("flow registry corrupt")

// Registry is the persisted set of flows.
type Registry struct {
	Flows         []*flow.Flow `json:"flows"`
	LastUpdated   time.Time    `json:"lastUpdated"`
	SchemaVersion string       `json:"schemaVersion"`
}

// New creates a registry stamped with now.
func New(flows []*flow.Flow, now time.Time) *Registry {
	if flows == nil {
		flows = []*flow.Flow{}
	}
	return &Registry{Flows: flows, LastUpdated: now.UTC(), SchemaVersion: SchemaVersion}
}

// State is the lifecycle state of a registry.
type State string

const (
	StateAbsent State = "absent"
	StateFresh  State = "fresh"
	StateStale  State = "stale"
)

// StateOf classifies a possibly nil registry. A registry older than maxAge is stale.
func StateOf(r *Registry, now time.Time, maxAge time.Duration) State {
	switch {
	case r == nil:
		return StateAbsent
	case now.Sub(r.LastUpdated) > maxAge:
		return StateStale
	default:
		return StateFresh
	}
}

// Storage reads and writes the registry file.
type Storage interface {
	// Load returns the registry, or nil if the file does not exist.
	Load() (*Registry, error)

	// Save writes the registry using a temp file and rename.
	Save(r *Registry) error

	// Exists checks if the registry file exists.
	Exists() bool

	// Path returns the registry file path.
	Path() string
}

type storage struct {
	path string
}

// NewStorage creates a storage for the registry file at path. The parent
// directory is created on the first Save.
func NewStorage(path string) Storage {
	return &storage{path: path}
}

func (s *storage) Load() (*Registry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", ErrRegistryCorrupt, s.path, err)
	}

	var r Registry
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %w", ErrRegistryCorrupt, s.path, err)
	}
	if r.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %q, want %q", ErrRegistryCorrupt, r.SchemaVersion, SchemaVersion)
	}
	if r.Flows == nil {
		r.Flows = []*flow.Flow{}
	}
	return &r, nil
}

func (s *storage) Save(r *Registry) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".flow-registry-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp registry file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to rename temp registry file: %w", err)
	}
	return nil
}

func (s *storage) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *storage) Path() string {
	return s.path
}
