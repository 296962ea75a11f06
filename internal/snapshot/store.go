// Package snapshot remembers the last reconciled status tree of each
// information package, so a later run keeps the expanded steps and
// reconciles against what was shown before.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/statustree"
)

const snapshotExt = ".json"

// Snapshot is a stored tree.
type Snapshot struct {
	ID      string             `json:"id"`
	IPID    string             `json:"ip_id"`
	SavedAt time.Time          `json:"saved_at"`
	Tree    []*statustree.Node `json:"tree"`
}

// Store keeps one snapshot file per IP in a directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on the
// first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// CheckID rejects ids that are not a plain file name, so that files named
// after an IP stay inside their directory.
func CheckID(ipID string) error {
	if ipID == "" || ipID != filepath.Base(ipID) || strings.HasPrefix(ipID, ".") {
		return fmt.Errorf("invalid information package id %q", ipID)
	}
	return nil
}

func (s *Store) path(ipID string) (string, error) {
	if err := CheckID(ipID); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, ipID+snapshotExt), nil
}

// Save atomically writes the tree of ipID, expanded flags included.
// Uses a temp file + rename so readers never see a partial file.
func (s *Store) Save(ipID string, tree []*statustree.Node) error {
	path, err := s.path(ipID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(Snapshot{
		ID:      uuid.NewString(),
		IPID:    ipID,
		SavedAt: time.Now().UTC(),
		Tree:    tree,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads the snapshot of ipID. A missing snapshot is ErrNotFound.
func (s *Store) Load(ipID string) (*Snapshot, error) {
	path, err := s.path(ipID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot of %s: %w", ipID, errors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes the snapshot of ipID. Deleting a missing snapshot is not
// an error.
func (s *Store) Delete(ipID string) error {
	path, err := s.path(ipID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return nil
}

// List returns the ids of the IPs with a snapshot, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, snapshotExt))
	}
	sort.Strings(ids)
	return ids, nil
}
