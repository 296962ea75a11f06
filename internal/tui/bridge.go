package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pablasso/etp/internal/statustree"
	"github.com/pablasso/etp/internal/tui/msgs"
)

// bridge implements monitor.Events by forwarding every callback to the
// running program as a message.
type bridge struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

// attach sets where messages go, normally (*tea.Program).Send. Messages
// sent before attach are dropped.
func (b *bridge) attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

// Send delivers msg to the program.
func (b *bridge) Send(msg tea.Msg) {
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

func (b *bridge) OnTreeUpdated(ipID string, tree []*statustree.Node, diff statustree.Diff) {
	b.Send(msgs.TreeUpdatedMsg{IPID: ipID, Tree: tree, Diff: diff})
}

func (b *bridge) OnEntityGone(ipID string) {
	b.Send(msgs.EntityGoneMsg{IPID: ipID})
}

func (b *bridge) OnFetchFailed(ipID string, err error) {
	b.Send(msgs.FetchFailedMsg{IPID: ipID, Err: err})
}
