package monitor

import "github.com/pablasso/etp/internal/statustree"

// Events receives callbacks from a Monitor.
// Implement this interface in the TUI to receive updates.
type Events interface {
	// OnTreeUpdated is called after a fetch was reconciled into the tree.
	// tree is a copy the receiver may keep.
	OnTreeUpdated(ipID string, tree []*statustree.Node, diff statustree.Diff)

	// OnEntityGone is called when the IP no longer exists on the server.
	// The status view of the IP should be hidden.
	OnEntityGone(ipID string)

	// OnFetchFailed is called when a fetch failed for any other reason.
	// The tree is left unchanged.
	OnFetchFailed(ipID string, err error)
}

// NopEvents ignores every callback.
type NopEvents struct{}

func (NopEvents) OnTreeUpdated(string, []*statustree.Node, statustree.Diff) {}
func (NopEvents) OnEntityGone(string)                                       {}
func (NopEvents) OnFetchFailed(string, error)                               {}
