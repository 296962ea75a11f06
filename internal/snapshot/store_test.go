package snapshot

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/statustree"
)

func sampleTree() []*statustree.Node {
	return []*statustree.Node{
		{
			ID: "s1", Name: "Prepare IP", Kind: statustree.KindStep, Status: statustree.StatusSuccess,
			Progress: 100, Expanded: true, ChildState: statustree.ChildrenLoaded, PageNumber: 2, PrevPage: 1,
			Children: []*statustree.Node{
				{ID: "t1", Name: "Create physical model", Kind: statustree.KindTask, Status: statustree.StatusSuccess, Progress: 100},
			},
		},
		{ID: "s2", Name: "Create SIP", Kind: statustree.KindStep, Status: "PENDING", ChildState: statustree.ChildrenPending},
	}
}

func TestStore_SaveLoad(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "snapshots"))

	if err := s.Save("ip-1", sampleTree()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	snap, err := s.Load("ip-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if snap.IPID != "ip-1" || snap.ID == "" || snap.SavedAt.IsZero() {
		t.Errorf("unexpected snapshot metadata: %+v", snap)
	}
	if !reflect.DeepEqual(snap.Tree, sampleTree()) {
		t.Errorf("expected tree to round trip, got %+v", snap.Tree)
	}
	if got := statustree.ExpandedIDs(snap.Tree); !reflect.DeepEqual(got, []string{"s1"}) {
		t.Errorf("expected expanded s1 to survive, got %v", got)
	}
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	for i := 0; i < 3; i++ {
		if err := s.Save("ip-1", sampleTree()); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "ip-1.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only ip-1.json, got %v", names)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.Load("ip-1"); !errors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestStore_RejectsPathIDs(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, id := range []string{"", "../escape", "a/b", ".hidden"} {
		if err := s.Save(id, sampleTree()); err == nil {
			t.Errorf("expected error saving %q", id)
		}
	}
}

func TestStore_DeleteAndList(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	if ids, err := s.List(); err != nil || len(ids) != 0 {
		t.Fatalf("expected empty list, got %v, %v", ids, err)
	}
	for _, id := range []string{"ip-2", "ip-1"} {
		if err := s.Save(id, sampleTree()); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if err := NewWatchLock(dir, "ip-1").Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ids, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"ip-1", "ip-2"}) {
		t.Errorf("expected [ip-1 ip-2], got %v", ids)
	}

	if err := s.Delete("ip-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete("ip-1"); err != nil {
		t.Errorf("expected second delete to succeed, got %v", err)
	}
	if ids, _ := s.List(); !reflect.DeepEqual(ids, []string{"ip-2"}) {
		t.Errorf("expected [ip-2], got %v", ids)
	}
}

func TestStore_ListMissingDir(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing"))
	ids, err := s.List()
	if err != nil || ids != nil {
		t.Errorf("expected nil, nil; got %v, %v", ids, err)
	}
}
