package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	agent "github.com/kavrelis/agent-core-go"
)

// FileStore persists conversation snapshots as individual JSON files in a
// directory. Each snapshot is stored as {id}.json.
type FileStore struct {
	dir string
}

var _ agent.ConversationStore = (*FileStore)(nil)

// NewFileStore creates a FileStore that saves snapshots to the given
// directory. The directory is created if it does not exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes a snapshot to disk as JSON.
func (f *FileStore) Save(_ context.Context, snap *agent.ConversationSnapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}

	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}

	if err := os.WriteFile(f.path(snap.ID), b, 0o644); err != nil {
		return fmt.Errorf("write conversation file: %w", err)
	}
	return nil
}

// Load reads a snapshot from disk by ID.
func (f *FileStore) Load(_ context.Context, id string) (*agent.ConversationSnapshot, error) {
	b, err := os.ReadFile(f.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("conversation not found: %s", id)
		}
		return nil, fmt.Errorf("read conversation file: %w", err)
	}

	var snap agent.ConversationSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	return &snap, nil
}

// Delete removes a snapshot file from disk.
func (f *FileStore) Delete(_ context.Context, id string) error {
	if err := os.Remove(f.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("conversation not found: %s", id)
		}
		return fmt.Errorf("remove conversation file: %w", err)
	}
	return nil
}

// List returns all snapshots stored on disk.
func (f *FileStore) List(_ context.Context) ([]*agent.ConversationSnapshot, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read conversation dir: %w", err)
	}

	var snaps []*agent.ConversationSnapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		s, err := f.Load(context.Background(), id)
		if err != nil {
			continue // skip corrupt files
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.dir, id+".json")
}
