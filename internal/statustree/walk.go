package statustree

// Walk visits every node depth-first in display order. Returning false from
// fn skips that node's children.
func Walk(tree []*Node, fn func(n *Node, depth int) bool) {
	walk(tree, 0, fn)
}

func walk(tree []*Node, depth int, fn func(n *Node, depth int) bool) {
	for _, n := range tree {
		if n == nil {
			continue
		}
		if fn(n, depth) {
			walk(n.Children, depth+1, fn)
		}
	}
}

// ExpandedIDs returns the ids of all expanded nodes, parents before children.
func ExpandedIDs(tree []*Node) []string {
	var ids []string
	Walk(tree, func(n *Node, _ int) bool {
		if n.Expanded && n.ID != "" {
			ids = append(ids, n.ID)
		}
		return true
	})
	return ids
}

// ExpandedPages returns the current child page of every expanded step that
// is past its first page, keyed by step id.
func ExpandedPages(tree []*Node) map[string]int {
	pages := map[string]int{}
	Walk(tree, func(n *Node, _ int) bool {
		if n.Expanded && n.PageNumber > 1 {
			pages[n.ID] = n.PageNumber
		}
		return true
	})
	return pages
}

// Find returns the node with the given id, or nil.
func Find(tree []*Node, id string) *Node {
	var found *Node
	Walk(tree, func(n *Node, _ int) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Visible returns the nodes a tree view shows: top-level nodes plus the
// children of expanded steps, with their depth.
func Visible(tree []*Node) []Row {
	var rows []Row
	Walk(tree, func(n *Node, depth int) bool {
		rows = append(rows, Row{Node: n, Depth: depth})
		return n.Expanded
	})
	return rows
}

// Row is a node positioned in a rendered tree.
type Row struct {
	Node  *Node
	Depth int
}

// Summary counts top-level nodes by status.
type Summary struct {
	Total      int
	Succeeded  int
	Failed     int
	InProgress int
	Undone     int
	// Progress is the mean progress of the top-level nodes.
	Progress int
}

// Summarize counts the top-level nodes of tree.
func Summarize(tree []*Node) Summary {
	var s Summary
	sum := 0
	for _, n := range tree {
		if n == nil {
			continue
		}
		s.Total++
		sum += n.Progress
		switch {
		case n.Undone:
			s.Undone++
		case n.Status.IsSuccess():
			s.Succeeded++
		case n.Status.IsFailure():
			s.Failed++
		default:
			s.InProgress++
		}
	}
	if s.Total > 0 {
		s.Progress = sum / s.Total
	}
	return s
}

// Done reports whether every top-level node has finished.
func (s Summary) Done() bool {
	return s.Total > 0 && s.InProgress == 0
}
