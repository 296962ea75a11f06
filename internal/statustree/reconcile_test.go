package statustree

import (
	"reflect"
	"testing"
	"time"
)

func step(id string, children ...*Node) *Node {
	n := &Node{ID: id, Name: "step " + id, Kind: KindStep, Status: StatusInProgress}
	if len(children) > 0 {
		n.Children = children
		n.ChildState = ChildrenLoaded
		n.PageNumber = 1
	} else {
		n.ChildState = ChildrenPending
	}
	return n
}

func task(id string, status Status, progress int) *Node {
	return &Node{ID: id, Name: "task " + id, Kind: KindTask, Status: status, Progress: progress}
}

func TestReconcile_UpdatesFieldsAndKeepsExpanded(t *testing.T) {
	old := []*Node{{ID: "1", Status: StatusInProgress, Progress: 40, Expanded: true}}
	original := old[0]
	fresh := []*Node{{ID: "1", Status: StatusSuccess, Progress: 100}}

	got := Reconcile(old, fresh)

	if len(got) != 1 {
		t.Fatalf("expected 1 node, got %d", len(got))
	}
	if got[0] != original {
		t.Error("expected the old node to be updated in place")
	}
	if got[0].Status != StatusSuccess {
		t.Errorf("expected status SUCCESS, got %s", got[0].Status)
	}
	if got[0].Progress != 100 {
		t.Errorf("expected progress 100, got %d", got[0].Progress)
	}
	if !got[0].Expanded {
		t.Error("expected expanded to survive reconciliation")
	}
}

func TestReconcile_TruncatesOverflowFromFront(t *testing.T) {
	first := &Node{ID: "1"}
	second := &Node{ID: "2", Name: "kept name"}
	old := []*Node{first, second}
	fresh := []*Node{{ID: "9"}}

	got := Reconcile(old, fresh)

	if len(got) != 1 {
		t.Fatalf("expected 1 node, got %d", len(got))
	}
	if got[0] != second {
		t.Error("expected the front entry to be discarded and the second to survive")
	}
	if got[0].ID != "9" {
		t.Errorf("expected id 9, got %s", got[0].ID)
	}
	if got[0].Name != "kept name" {
		t.Errorf("expected empty fresh name to keep old name, got %q", got[0].Name)
	}
}

func TestReconcile_TruncatesToFreshLength(t *testing.T) {
	old := []*Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}}
	fresh := []*Node{{ID: "x"}, {ID: "y"}}

	got := Reconcile(old, fresh)

	if len(got) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(got))
	}
	if got[0].ID != "x" || got[1].ID != "y" {
		t.Errorf("expected ids [x y], got [%s %s]", got[0].ID, got[1].ID)
	}
}

func TestReconcile_EmptyOldAppendsVerbatim(t *testing.T) {
	fresh := []*Node{task("a", StatusSuccess, 100), step("b")}

	got := Reconcile(nil, fresh)

	if len(got) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(got))
	}
	for i := range fresh {
		if got[i] != fresh[i] {
			t.Errorf("expected node %d to be appended as-is", i)
		}
		if got[i].Expanded {
			t.Errorf("expected node %d to start collapsed", i)
		}
	}
}

func TestReconcile_AppendsExtraFreshNodes(t *testing.T) {
	old := []*Node{{ID: "a", Expanded: true}}
	extra := &Node{ID: "b"}

	got := Reconcile(old, []*Node{{ID: "a"}, extra})

	if len(got) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(got))
	}
	if got[1] != extra {
		t.Error("expected the extra node to be appended as-is")
	}
}

func TestReconcile_FieldRules(t *testing.T) {
	started := time.Date(2017, 3, 1, 10, 0, 0, 0, time.UTC)
	later := started.Add(time.Minute)

	tests := []struct {
		name  string
		old   Node
		fresh Node
		check func(t *testing.T, n *Node)
	}{
		{
			name:  "empty fresh strings keep old values",
			old:   Node{ID: "1", Name: "Create SIP", User: "admin", Kind: KindStep, Status: StatusFailure},
			fresh: Node{ID: "1"},
			check: func(t *testing.T, n *Node) {
				if n.Name != "Create SIP" || n.User != "admin" || n.Kind != KindStep || n.Status != StatusFailure {
					t.Errorf("expected old values to be kept, got %+v", *n)
				}
			},
		},
		{
			name:  "empty old strings take fresh values",
			old:   Node{ID: "1"},
			fresh: Node{ID: "1", Name: "Validate", User: "user", Kind: KindTask},
			check: func(t *testing.T, n *Node) {
				if n.Name != "Validate" || n.User != "user" || n.Kind != KindTask {
					t.Errorf("expected fresh values, got %+v", *n)
				}
			},
		},
		{
			name:  "nil time started keeps old",
			old:   Node{ID: "1", TimeStarted: &started},
			fresh: Node{ID: "1"},
			check: func(t *testing.T, n *Node) {
				if n.TimeStarted == nil || !n.TimeStarted.Equal(started) {
					t.Errorf("expected time started to be kept, got %v", n.TimeStarted)
				}
			},
		},
		{
			name:  "new time started replaces old",
			old:   Node{ID: "1", TimeStarted: &started},
			fresh: Node{ID: "1", TimeStarted: &later},
			check: func(t *testing.T, n *Node) {
				if n.TimeStarted == nil || !n.TimeStarted.Equal(later) {
					t.Errorf("expected time started %v, got %v", later, n.TimeStarted)
				}
			},
		},
		{
			name:  "progress zero is meaningful",
			old:   Node{ID: "1", Progress: 40},
			fresh: Node{ID: "1", Progress: 0},
			check: func(t *testing.T, n *Node) {
				if n.Progress != 0 {
					t.Errorf("expected progress 0, got %d", n.Progress)
				}
			},
		},
		{
			name:  "undone can be cleared by retry",
			old:   Node{ID: "1", Undone: true},
			fresh: Node{ID: "1", Undone: false},
			check: func(t *testing.T, n *Node) {
				if n.Undone {
					t.Error("expected undone to be cleared")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old := tt.old
			fresh := tt.fresh
			got := Reconcile([]*Node{&old}, []*Node{&fresh})
			tt.check(t, got[0])
		})
	}
}

func TestReconcile_MergesLoadedChildren(t *testing.T) {
	child := task("t1", StatusInProgress, 10)
	parent := step("s1", child)
	parent.Expanded = true
	child.Expanded = true

	fresh := step("s1", task("t1", StatusSuccess, 100), task("t2", StatusInProgress, 0))
	fresh.NextPage = 2

	got := Reconcile([]*Node{parent}, []*Node{fresh})

	if got[0] != parent {
		t.Fatal("expected parent to be updated in place")
	}
	if len(parent.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(parent.Children))
	}
	if parent.Children[0] != child {
		t.Error("expected first child to be updated in place")
	}
	if child.Status != StatusSuccess || child.Progress != 100 {
		t.Errorf("expected child to be SUCCESS/100, got %s/%d", child.Status, child.Progress)
	}
	if !child.Expanded || !parent.Expanded {
		t.Error("expected expanded flags to survive")
	}
	if parent.NextPage != 2 {
		t.Errorf("expected next page 2, got %d", parent.NextPage)
	}
}

func TestReconcile_PendingChildrenLeaveOldChildren(t *testing.T) {
	child := task("t1", StatusSuccess, 100)
	parent := step("s1", child)

	got := Reconcile([]*Node{parent}, []*Node{step("s1")})

	if len(got[0].Children) != 1 || got[0].Children[0] != child {
		t.Error("expected fetched children to be left alone by a pending sentinel")
	}
	if got[0].ChildState != ChildrenLoaded {
		t.Errorf("expected child state loaded, got %q", got[0].ChildState)
	}
}

func TestReconcile_EmptyLoadedChildrenAreSkipped(t *testing.T) {
	child := task("t1", StatusSuccess, 100)
	parent := step("s1", child)
	fresh := &Node{ID: "s1", Kind: KindStep, ChildState: ChildrenLoaded}

	Reconcile([]*Node{parent}, []*Node{fresh})

	if len(parent.Children) != 1 {
		t.Errorf("expected children to be kept, got %d", len(parent.Children))
	}
}

func TestReconcile_MatchesByPosition(t *testing.T) {
	a := &Node{ID: "a", Expanded: true}
	b := &Node{ID: "b"}

	got := Reconcile([]*Node{a, b}, []*Node{{ID: "b"}, {ID: "a"}})

	if got[0].ID != "b" || !got[0].Expanded {
		t.Errorf("expected slot 0 to become b and carry a's expanded flag, got %+v", *got[0])
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	started := time.Date(2017, 3, 1, 10, 0, 0, 0, time.UTC)
	freshTree := func() []*Node {
		s := step("s1", task("t1", StatusSuccess, 100), task("t2", StatusInProgress, 50))
		s.User = "admin"
		s.TimeStarted = &started
		return []*Node{s, task("t3", StatusFailure, 20)}
	}
	oldTree := func() []*Node {
		s := step("s1", task("t1", StatusInProgress, 10))
		s.Expanded = true
		return []*Node{s, task("t0", StatusInProgress, 0), task("tx", StatusInProgress, 0)}
	}

	once := Reconcile(oldTree(), freshTree())
	twice := Reconcile(Reconcile(oldTree(), freshTree()), freshTree())

	if !reflect.DeepEqual(Clone(once), Clone(twice)) {
		t.Errorf("expected reconcile to be idempotent\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestReconcile_SkipsNilEntries(t *testing.T) {
	got := Reconcile([]*Node{nil}, []*Node{{ID: "a"}, nil})

	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0] == nil || got[0].ID != "a" {
		t.Errorf("expected nil old slot to be replaced by fresh node, got %+v", got[0])
	}
}

func TestMerge_KeepsIdentityAcrossReorder(t *testing.T) {
	a := &Node{ID: "a", Expanded: true, Status: StatusInProgress}
	b := &Node{ID: "b"}

	got := Merge([]*Node{a, b}, []*Node{{ID: "b"}, {ID: "a", Status: StatusSuccess}})

	if len(got) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(got))
	}
	if got[0] != b || got[1] != a {
		t.Error("expected result to follow fresh order with old identities")
	}
	if !a.Expanded {
		t.Error("expected a to stay expanded")
	}
	if b.Expanded {
		t.Error("expected b to stay collapsed")
	}
	if a.Status != StatusSuccess {
		t.Errorf("expected a to be SUCCESS, got %s", a.Status)
	}
}

func TestMerge_AddsAndRemoves(t *testing.T) {
	a := &Node{ID: "a"}
	gone := &Node{ID: "gone"}
	added := &Node{ID: "new"}

	got := Merge([]*Node{a, gone}, []*Node{added, {ID: "a"}})

	if len(got) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(got))
	}
	if got[0] != added {
		t.Error("expected the new node to be inserted as-is")
	}
	if got[1] != a {
		t.Error("expected a to keep its identity")
	}
	if Find(got, "gone") != nil {
		t.Error("expected the missing node to be removed")
	}
}

func TestMerge_IgnoresDuplicateIDs(t *testing.T) {
	got := Merge(nil, []*Node{{ID: "a", Name: "first"}, {ID: "a", Name: "second"}})

	if len(got) != 1 {
		t.Fatalf("expected 1 node, got %d", len(got))
	}
	if got[0].Name != "first" {
		t.Errorf("expected first occurrence to win, got %q", got[0].Name)
	}
}

func TestMerge_RecursesIntoChildren(t *testing.T) {
	t1 := task("t1", StatusInProgress, 30)
	t1.Expanded = true
	parent := step("s1", t1, task("t2", StatusInProgress, 0))
	parent.Expanded = true

	fresh := step("s1", task("t2", StatusSuccess, 100), task("t1", StatusSuccess, 100))

	got := Merge([]*Node{parent}, []*Node{fresh})

	if got[0] != parent {
		t.Fatal("expected parent identity to be kept")
	}
	if parent.Children[1] != t1 {
		t.Error("expected t1 to move to index 1 with its identity")
	}
	if !t1.Expanded {
		t.Error("expected t1 to stay expanded")
	}
	if t1.Status != StatusSuccess {
		t.Errorf("expected t1 SUCCESS, got %s", t1.Status)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	fresh := func() []*Node {
		return []*Node{step("s1", task("t1", StatusSuccess, 100)), task("t9", StatusFailure, 5)}
	}
	old := func() []*Node {
		s := step("s1", task("t1", StatusInProgress, 0))
		s.Expanded = true
		return []*Node{task("t0", StatusInProgress, 0), s}
	}

	once := Merge(old(), fresh())
	twice := Merge(Merge(old(), fresh()), fresh())

	if !reflect.DeepEqual(Clone(once), Clone(twice)) {
		t.Errorf("expected merge to be idempotent\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestStrategyFor(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"keyed", true},
		{"positional", true},
		{"", true},
		{"random", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := StrategyFor(tt.name)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && s == nil {
				t.Error("expected a strategy")
			}
		})
	}
}
