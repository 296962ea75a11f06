package statustree

// Strategy merges a fresh fetch into the displayed tree and returns the
// resulting tree.
type Strategy func(old, fresh []*Node) []*Node

// Reconcile merges fresh into old by position and returns old.
//
// When old is longer than fresh, the overflow is dropped from the front
// of old. Each surviving old node is then updated in place from the fresh
// node at the same index: children first (only when the fresh node carries
// a non-empty loaded page), then the tracked fields. Fresh nodes without a
// counterpart are appended as they are. Nodes are matched by index, never
// by id, so a reordered fetch attributes old local state such as Expanded
// to whichever node now sits at that index; use Merge to match by id.
func Reconcile(old, fresh []*Node) []*Node {
	if drop := len(old) - len(fresh); drop > 0 {
		old = append(old[:0], old[drop:]...)
	}

	for i, src := range fresh {
		if src == nil {
			continue
		}
		if i >= len(old) {
			old = append(old, src)
			continue
		}
		dst := old[i]
		if dst == nil {
			old[i] = src
			continue
		}
		if src.HasLoadedChildren() {
			dst.Children = Reconcile(dst.Children, src.Children)
			adoptPage(dst, src)
		}
		mergeFields(dst, src)
	}
	return old
}

// Merge merges fresh into old by node id.
//
// The result follows the order of fresh. A fresh node whose id exists in
// old is merged into the old node, which keeps its identity and local
// state; children are merged the same way before the node's own fields
// when the fresh node carries a non-empty loaded page. Fresh nodes with
// unknown ids are added as they are, and old nodes whose ids are absent
// from fresh are dropped. Later duplicates of an id in fresh are ignored.
func Merge(old, fresh []*Node) []*Node {
	byID := make(map[string]*Node, len(old))
	for _, n := range old {
		if n != nil && n.ID != "" {
			byID[n.ID] = n
		}
	}

	out := make([]*Node, 0, len(fresh))
	seen := make(map[string]bool, len(fresh))
	for _, src := range fresh {
		if src == nil {
			continue
		}
		if src.ID != "" {
			if seen[src.ID] {
				continue
			}
			seen[src.ID] = true
		}

		dst, ok := byID[src.ID]
		if !ok {
			out = append(out, src)
			continue
		}
		if src.HasLoadedChildren() {
			dst.Children = Merge(dst.Children, src.Children)
			adoptPage(dst, src)
		}
		mergeFields(dst, src)
		out = append(out, dst)
	}
	return out
}

// StrategyFor returns the strategy registered under name. Unknown names
// report false.
func StrategyFor(name string) (Strategy, bool) {
	switch name {
	case "keyed", "":
		return Merge, true
	case "positional":
		return Reconcile, true
	default:
		return nil, false
	}
}
