package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Sentinel errors for plan artifact persistence.
var (
	ErrArtifactNotFound = errors.New("plan artifact not found")
)

// Store persists Plan snapshots as named JSON artifacts under a directory,
// one per pipeline stage (plan_after_planner.json, plan_after_retriever.json,
// plan_after_writer.json).
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir. The directory is created lazily on
// first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes the plan to <dir>/<name>.json.
func (s *Store) Save(name string, p *Plan) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create plan store directory: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	path := filepath.Join(s.dir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write plan artifact %s: %w", name, err)
	}
	return nil
}

// Load reads the plan at <dir>/<name>.json.
func (s *Store) Load(name string) (*Plan, error) {
	path := filepath.Join(s.dir, name+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
		}
		return nil, fmt.Errorf("read plan artifact %s: %w", name, err)
	}

	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal plan artifact %s: %w", name, err)
	}
	return &p, nil
}

// Artifact names for the three stage snapshots and the final document.
const (
	ArtifactAfterPlanner   = "plan_after_planner"
	ArtifactAfterRetriever = "plan_after_retriever"
	ArtifactAfterWriter    = "plan_after_writer"
	ArtifactDocument       = "document"
)
