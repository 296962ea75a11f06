package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pablasso/etp/internal/snapshot"
)

const logExt = ".log"

// JSONLStore appends entries to one JSON Lines file per IP.
type JSONLStore struct {
	dir string
	mu  sync.Mutex
}

// NewJSONLStore creates a store writing <dir>/<ip>.log files.
func NewJSONLStore(dir string) *JSONLStore {
	return &JSONLStore{dir: dir}
}

func (s *JSONLStore) path(ipID string) (string, error) {
	if err := snapshot.CheckID(ipID); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, ipID+logExt), nil
}

// Record appends entries to the log of their IP.
func (s *JSONLStore) Record(_ context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	byIP := make(map[string][]byte)
	var order []string
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal history entry: %w", err)
		}
		if _, ok := byIP[e.IPID]; !ok {
			order = append(order, e.IPID)
		}
		byIP[e.IPID] = append(append(byIP[e.IPID], line...), '\n')
	}

	for _, ipID := range order {
		path, err := s.path(ipID)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open history log: %w", err)
		}
		_, err = f.Write(byIP[ipID])
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to write history log: %w", err)
		}
	}
	return nil
}

// List reads the log of ipID. A missing log is an empty history.
func (s *JSONLStore) List(_ context.Context, ipID string, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.path(ipID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open history log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("failed to parse history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history log: %w", err)
	}
	return newestFirst(entries, limit), nil
}

// Close is a no-op; files are opened per call.
func (s *JSONLStore) Close() error { return nil }
