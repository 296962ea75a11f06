package statustree

// ChangeKind classifies a difference between two trees.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
	ChangeStatus  ChangeKind = "status_changed"
	ChangeUndone  ChangeKind = "undone"
	ChangeUpdated ChangeKind = "updated"
)

// Change describes one node that differs between two trees.
type Change struct {
	Kind     ChangeKind
	ID       string
	Name     string
	NodeKind Kind
	ParentID string
	From     Status
	To       Status
}

// Diff lists the changes between two trees in the order of the newer tree,
// followed by removals in the order of the older tree.
type Diff struct {
	Changes []Change
}

// Empty reports whether the trees were identical in every tracked field.
func (d Diff) Empty() bool {
	return len(d.Changes) == 0
}

// Count returns the number of changes of kind k.
func (d Diff) Count(k ChangeKind) int {
	n := 0
	for _, c := range d.Changes {
		if c.Kind == k {
			n++
		}
	}
	return n
}

type located struct {
	node   *Node
	parent string
}

func index(tree []*Node) (map[string]located, []string) {
	byID := make(map[string]located)
	var order []string
	var visit func(nodes []*Node, parent string)
	visit = func(nodes []*Node, parent string) {
		for _, n := range nodes {
			if n == nil || n.ID == "" {
				continue
			}
			if _, dup := byID[n.ID]; !dup {
				byID[n.ID] = located{node: n, parent: parent}
				order = append(order, n.ID)
			}
			visit(n.Children, n.ID)
		}
	}
	visit(tree, "")
	return byID, order
}

// Compare reports how after differs from before, matching nodes by id
// anywhere in the tree. Nodes without an id are ignored.
func Compare(before, after []*Node) Diff {
	prev, prevOrder := index(before)
	next, nextOrder := index(after)

	var d Diff
	for _, id := range nextOrder {
		cur := next[id]
		old, ok := prev[id]
		if !ok {
			d.Changes = append(d.Changes, change(ChangeAdded, cur, "", cur.node.Status))
			continue
		}
		switch {
		case !old.node.Undone && cur.node.Undone:
			d.Changes = append(d.Changes, change(ChangeUndone, cur, old.node.Status, cur.node.Status))
		case old.node.Status.Label() != cur.node.Status.Label():
			d.Changes = append(d.Changes, change(ChangeStatus, cur, old.node.Status, cur.node.Status))
		case fieldsDiffer(old.node, cur.node):
			d.Changes = append(d.Changes, change(ChangeUpdated, cur, old.node.Status, cur.node.Status))
		}
	}
	for _, id := range prevOrder {
		if _, ok := next[id]; !ok {
			old := prev[id]
			d.Changes = append(d.Changes, change(ChangeRemoved, old, old.node.Status, ""))
		}
	}
	return d
}

func change(k ChangeKind, at located, from, to Status) Change {
	return Change{
		Kind:     k,
		ID:       at.node.ID,
		Name:     at.node.Name,
		NodeKind: at.node.Kind,
		ParentID: at.parent,
		From:     from,
		To:       to,
	}
}

func fieldsDiffer(a, b *Node) bool {
	if a.Name != b.Name || a.User != b.User || a.Kind != b.Kind ||
		a.Status != b.Status || a.Progress != b.Progress || a.Undone != b.Undone {
		return true
	}
	switch {
	case a.TimeStarted == nil && b.TimeStarted == nil:
		return false
	case a.TimeStarted == nil || b.TimeStarted == nil:
		return true
	default:
		return !a.TimeStarted.Equal(*b.TimeStarted)
	}
}
