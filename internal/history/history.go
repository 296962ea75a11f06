// Package history journals the status transitions seen while watching an
// information package.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pablasso/etp/internal/statustree"
)

// Backend names accepted by New.
const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// Entry is one recorded transition of a node.
type Entry struct {
	ID       string                `json:"id" yaml:"id"`
	Time     time.Time             `json:"time" yaml:"time"`
	IPID     string                `json:"ip_id" yaml:"ip_id"`
	NodeID   string                `json:"node_id" yaml:"node_id"`
	NodeName string                `json:"node_name" yaml:"node_name"`
	Kind     statustree.Kind       `json:"kind" yaml:"kind"`
	ParentID string                `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	From     statustree.Status     `json:"from,omitempty" yaml:"from,omitempty"`
	To       statustree.Status     `json:"to,omitempty" yaml:"to,omitempty"`
	Change   statustree.ChangeKind `json:"change" yaml:"change"`
}

// Recorder stores entries and lists them back.
type Recorder interface {
	Record(ctx context.Context, entries []Entry) error
	// List returns the newest entries for an IP, newest first. A limit of
	// zero or less returns all of them.
	List(ctx context.Context, ipID string, limit int) ([]Entry, error)
	Close() error
}

// FromDiff converts the transitions in d to entries stamped with at.
// Field-only updates such as progress ticks are not transitions and are
// left out.
func FromDiff(ipID string, d statustree.Diff, at time.Time) []Entry {
	var out []Entry
	for _, c := range d.Changes {
		if c.Kind == statustree.ChangeUpdated {
			continue
		}
		out = append(out, Entry{
			ID:       ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String(),
			Time:     at,
			IPID:     ipID,
			NodeID:   c.ID,
			NodeName: c.Name,
			Kind:     c.NodeKind,
			ParentID: c.ParentID,
			From:     c.From,
			To:       c.To,
			Change:   c.Kind,
		})
	}
	return out
}

// New opens the recorder for backend, storing under dir.
func New(backend, dir string) (Recorder, error) {
	switch backend {
	case BackendJSONL, "":
		return NewJSONLStore(dir), nil
	case BackendSQLite:
		return OpenSQLite(dir)
	case BackendNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", backend)
	}
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, []Entry) error { return nil }

func (Nop) List(context.Context, string, int) ([]Entry, error) { return nil, nil }

func (Nop) Close() error { return nil }

// newestFirst reverses entries in place and trims them to limit.
func newestFirst(entries []Entry, limit int) []Entry {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
