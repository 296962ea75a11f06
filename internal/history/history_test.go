package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pablasso/etp/internal/statustree"
)

func sampleDiff() statustree.Diff {
	return statustree.Diff{Changes: []statustree.Change{
		{Kind: statustree.ChangeStatus, ID: "t1", Name: "Validate XML", NodeKind: statustree.KindTask,
			ParentID: "s1", From: statustree.StatusInProgress, To: statustree.StatusSuccess},
		{Kind: statustree.ChangeUpdated, ID: "t2", Name: "Convert", NodeKind: statustree.KindTask},
		{Kind: statustree.ChangeAdded, ID: "t3", Name: "Package", NodeKind: statustree.KindTask, To: "PENDING"},
		{Kind: statustree.ChangeRemoved, ID: "t4", Name: "Old", NodeKind: statustree.KindTask, From: statustree.StatusFailure},
	}}
}

func TestFromDiff_SkipsFieldUpdates(t *testing.T) {
	at := time.Date(2017, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := FromDiff("ip-1", sampleDiff(), at)

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	first := entries[0]
	if first.IPID != "ip-1" || first.NodeID != "t1" || first.ParentID != "s1" ||
		first.Change != statustree.ChangeStatus || first.To != statustree.StatusSuccess {
		t.Errorf("unexpected entry: %+v", first)
	}
	if !first.Time.Equal(at) {
		t.Errorf("expected time %v, got %v", at, first.Time)
	}
	seen := map[string]bool{}
	for i, e := range entries {
		if e.ID == "" || seen[e.ID] {
			t.Errorf("expected unique id, got %q", e.ID)
		}
		seen[e.ID] = true
		if i > 0 && e.ID <= entries[i-1].ID {
			t.Errorf("expected ids to sort in record order, got %s after %s", e.ID, entries[i-1].ID)
		}
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		backend string
		check   func(Recorder) bool
	}{
		{"", func(r Recorder) bool { _, ok := r.(*JSONLStore); return ok }},
		{BackendJSONL, func(r Recorder) bool { _, ok := r.(*JSONLStore); return ok }},
		{BackendSQLite, func(r Recorder) bool { _, ok := r.(*SQLiteStore); return ok }},
		{BackendNone, func(r Recorder) bool { _, ok := r.(Nop); return ok }},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			r, err := New(tt.backend, dir)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer r.Close()
			if !tt.check(r) {
				t.Errorf("unexpected recorder type %T", r)
			}
		})
	}

	if _, err := New("csv", dir); err == nil {
		t.Error("expected error for unknown backend")
	}
}

// exerciseRecorder checks the behavior every backend shares.
func exerciseRecorder(t *testing.T, r Recorder) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2017, 3, 1, 12, 0, 0, 0, time.UTC)

	if got, err := r.List(ctx, "ip-1", 0); err != nil || len(got) != 0 {
		t.Fatalf("expected empty history, got %v, %v", got, err)
	}

	if err := r.Record(ctx, FromDiff("ip-1", sampleDiff(), base)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	later := FromDiff("ip-1", statustree.Diff{Changes: []statustree.Change{
		{Kind: statustree.ChangeUndone, ID: "t1", Name: "Validate XML", NodeKind: statustree.KindTask},
	}}, base.Add(time.Minute))
	other := FromDiff("ip-2", statustree.Diff{Changes: []statustree.Change{
		{Kind: statustree.ChangeAdded, ID: "x", Name: "Other", NodeKind: statustree.KindStep},
	}}, base.Add(time.Minute))
	if err := r.Record(ctx, append(later, other...)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := r.Record(ctx, nil); err != nil {
		t.Fatalf("Record with no entries: %v", err)
	}

	got, err := r.List(ctx, "ip-1", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(got))
	}
	if got[0].Change != statustree.ChangeUndone || got[3].Change != statustree.ChangeStatus {
		t.Errorf("expected newest first, got %s ... %s", got[0].Change, got[3].Change)
	}
	if got[3].ParentID != "s1" || got[3].From != statustree.StatusInProgress || !got[3].Time.Equal(base) {
		t.Errorf("expected fields to round trip, got %+v", got[3])
	}

	limited, err := r.List(ctx, "ip-1", 2)
	if err != nil {
		t.Fatalf("List with limit: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != got[0].ID {
		t.Errorf("expected the 2 newest entries, got %+v", limited)
	}

	if others, _ := r.List(ctx, "ip-2", 0); len(others) != 1 {
		t.Errorf("expected 1 entry for ip-2, got %d", len(others))
	}
}

func TestJSONLStore(t *testing.T) {
	exerciseRecorder(t, NewJSONLStore(filepath.Join(t.TempDir(), "history")))
}

func TestJSONLStore_RejectsPathIDs(t *testing.T) {
	root := t.TempDir()
	s := NewJSONLStore(filepath.Join(root, "history"))
	ctx := context.Background()

	entries := FromDiff("../escape", sampleDiff(), time.Now())
	if err := s.Record(ctx, entries); err == nil {
		t.Error("expected error recording for a path id")
	}
	if _, err := s.List(ctx, "../escape", 0); err == nil {
		t.Error("expected error listing a path id")
	}
	if _, err := os.Stat(filepath.Join(root, "escape.log")); !os.IsNotExist(err) {
		t.Errorf("expected no log outside the history dir, got %v", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	exerciseRecorder(t, s)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	entries := FromDiff("ip-1", sampleDiff(), time.Now())
	if err := s.Record(context.Background(), entries); err != nil {
		t.Fatalf("Record: %v", err)
	}
	s.Close()

	s, err = OpenSQLite(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.List(context.Background(), "ip-1", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != len(entries) {
		t.Errorf("expected %d entries after reopen, got %d", len(entries), len(got))
	}
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	if err := r.Record(context.Background(), FromDiff("ip", sampleDiff(), time.Now())); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got, _ := r.List(context.Background(), "ip", 0); len(got) != 0 {
		t.Errorf("expected nothing stored, got %v", got)
	}
}
