package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pablasso/etp/internal/config"
	"github.com/pablasso/etp/internal/demo"
	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/selection"
	"github.com/pablasso/etp/internal/snapshot"
	"github.com/pablasso/etp/internal/statustree"
	"github.com/pablasso/etp/internal/testutil"
	"github.com/pablasso/etp/internal/tui/msgs"
)

// harness plays the part of the Bubble Tea runtime: commands run on
// goroutines and their messages are fed back through Update in order.
type harness struct {
	t    *testing.T
	m    Model
	srv  *testutil.DemoServer
	cfg  *config.Config
	msgs chan tea.Msg
	done chan struct{}
}

func newHarness(t *testing.T, cfg demo.Config) *harness {
	t.Helper()
	return newHarnessWith(t, cfg, selection.State{})
}

func newHarnessWith(t *testing.T, cfg demo.Config, initial selection.State) *harness {
	t.Helper()
	srv := testutil.NewDemoServer(t, cfg)

	conf := config.Default()
	conf.Server.URL = srv.URL()
	conf.State.Dir = t.TempDir()
	// Passes only run when a test asks for them
	conf.Monitor.Interval = time.Hour
	conf.Monitor.GoneRefreshDelay = 10 * time.Millisecond
	conf.Monitor.ActionRefreshDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		t:    t,
		srv:  srv,
		cfg:  conf,
		msgs: make(chan tea.Msg, 256),
		done: make(chan struct{}),
	}
	b := &bridge{}
	b.attach(h.post)
	h.m = newModel(deps{
		ctx:       ctx,
		client:    srv.Client,
		cfg:       conf,
		bridge:    b,
		serverURL: srv.URL(),
		initial:   initial,
	})
	t.Cleanup(func() {
		h.m.stopWatch()
		cancel()
		close(h.done)
	})

	h.update(tea.WindowSizeMsg{Width: 140, Height: 40})
	h.run(h.m.Init())
	h.waitFor(is[msgs.IPsLoadedMsg])
	return h
}

func (h *harness) post(msg tea.Msg) {
	select {
	case h.msgs <- msg:
	case <-h.done:
	}
}

func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() { h.post(cmd()) }()
}

func (h *harness) update(msg tea.Msg) {
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, cmd := range batch {
			h.run(cmd)
		}
		return
	}
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	h.run(cmd)
}

func (h *harness) press(keys ...string) {
	for _, k := range keys {
		h.update(key(k))
	}
}

// waitFor processes messages until one matches.
func (h *harness) waitFor(match func(tea.Msg) bool) tea.Msg {
	h.t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg := <-h.msgs:
			if msg == nil {
				continue
			}
			h.update(msg)
			if match(msg) {
				return msg
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for message; view:\n%s", h.m.View())
			return nil
		}
	}
}

func is[T tea.Msg](msg tea.Msg) bool {
	_, ok := msg.(T)
	return ok
}

func key(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
}

// openStatus opens the status view of the IP under the list cursor and
// waits for its first tree.
func (h *harness) openStatus() {
	h.t.Helper()
	h.press("enter")
	h.waitFor(is[msgs.TreeUpdatedMsg])
}

func TestModel_LoadsIPList(t *testing.T) {
	h := newHarness(t, demo.Config{})

	view := h.m.View()
	if !strings.Contains(view, "Annual report 2016") {
		t.Errorf("expected first IP in list, got:\n%s", view)
	}
	if !strings.Contains(view, "page 1 of 2 (14 total)") {
		t.Errorf("expected page footer, got:\n%s", view)
	}
	if h.m.Selection().View != selection.None {
		t.Errorf("expected no view open, got %s", h.m.Selection().View)
	}
}

func TestModel_PagesIPList(t *testing.T) {
	h := newHarness(t, demo.Config{})

	h.press("right")
	h.waitFor(is[msgs.IPsLoadedMsg])
	if got := h.m.list.PageNumber(); got != 2 {
		t.Fatalf("expected page 2, got %d", got)
	}
	if view := h.m.View(); !strings.Contains(view, "page 2 of 2") {
		t.Errorf("expected second page footer, got:\n%s", view)
	}

	// No page after the last one
	h.press("right")
	if got := h.m.list.PageNumber(); got != 2 {
		t.Errorf("expected to stay on page 2, got %d", got)
	}

	h.press("left")
	h.waitFor(is[msgs.IPsLoadedMsg])
	if got := h.m.list.PageNumber(); got != 1 {
		t.Errorf("expected page 1, got %d", got)
	}
}

func TestModel_OpenAndCloseStatus(t *testing.T) {
	h := newHarness(t, demo.Config{})
	h.openStatus()

	want := selection.State{View: selection.Status, IPID: demo.WatchedIP}
	if h.m.Selection() != want {
		t.Fatalf("expected %+v, got %+v", want, h.m.Selection())
	}
	if h.m.focus != focusPane {
		t.Error("expected the status pane to take focus")
	}
	view := h.m.View()
	if !strings.Contains(view, "▸ Prepare IP") {
		t.Errorf("expected collapsed first step, got:\n%s", view)
	}
	if !strings.Contains(view, "0/3 done") {
		t.Errorf("expected summary line, got:\n%s", view)
	}

	h.press("esc")
	if h.m.Selection().View != selection.None {
		t.Errorf("expected view closed, got %s", h.m.Selection().View)
	}
	if h.m.watch != nil {
		t.Error("expected monitor to stop when the view closes")
	}
	if _, err := h.m.snapshots.Load(demo.WatchedIP); err != nil {
		t.Errorf("expected snapshot to be saved, got %v", err)
	}
	locked, err := snapshot.NewWatchLock(h.cfg.SnapshotDir(), demo.WatchedIP).IsLocked()
	if err != nil || locked {
		t.Errorf("expected lock released, got locked=%v err=%v", locked, err)
	}
}

func TestModel_StatusClickedTwiceCloses(t *testing.T) {
	h := newHarness(t, demo.Config{})

	h.update(msgs.OpenStatusMsg{IPID: demo.WatchedIP})
	h.waitFor(is[msgs.TreeUpdatedMsg])
	h.update(msgs.OpenStatusMsg{IPID: demo.WatchedIP})

	if h.m.Selection().View != selection.None {
		t.Errorf("expected second click to close the view, got %s", h.m.Selection().View)
	}
	if h.m.watch != nil {
		t.Error("expected monitor to stop")
	}
}

func TestModel_ToggleAndDetail(t *testing.T) {
	h := newHarness(t, demo.Config{})
	h.openStatus()

	h.press("enter")
	h.waitFor(is[msgs.ActionDoneMsg])
	if view := h.m.View(); !strings.Contains(view, "Create physical model") {
		t.Fatalf("expected expanded step children, got:\n%s", view)
	}

	h.press("down")
	if name := h.m.status.Selected().Name; name != "Create physical model" {
		t.Fatalf("expected cursor on first task, got %q", name)
	}
	h.press("i")
	msg := h.waitFor(is[msgs.DetailLoadedMsg]).(msgs.DetailLoadedMsg)
	if msg.Err != nil {
		t.Fatalf("expected detail, got %v", msg.Err)
	}
	if view := h.m.View(); !strings.Contains(view, "Status:") {
		t.Errorf("expected detail panel, got:\n%s", view)
	}

	h.press("i")
	if view := h.m.View(); strings.Contains(view, "Status:") {
		t.Errorf("expected detail panel hidden, got:\n%s", view)
	}
}

func TestModel_UndoAndRetry(t *testing.T) {
	h := newHarness(t, demo.Config{})
	h.srv.TickN(2)
	h.openStatus()

	h.press("enter")
	h.waitFor(is[msgs.ActionDoneMsg])
	h.press("down")
	id := h.m.status.SelectedID()

	h.press("u")
	done := h.waitFor(is[msgs.ActionDoneMsg]).(msgs.ActionDoneMsg)
	if done.Op != "undo" || done.Err != nil {
		t.Fatalf("expected successful undo, got %+v", done)
	}
	h.waitFor(func(msg tea.Msg) bool {
		up, ok := msg.(msgs.TreeUpdatedMsg)
		if !ok {
			return false
		}
		n := statustree.Find(up.Tree, id)
		return n != nil && n.Undone
	})
	if view := h.m.View(); !strings.Contains(view, "UNDONE") {
		t.Errorf("expected undone task, got:\n%s", view)
	}

	h.press("r")
	done = h.waitFor(is[msgs.ActionDoneMsg]).(msgs.ActionDoneMsg)
	if done.Op != "retry" || done.Err != nil {
		t.Fatalf("expected successful retry, got %+v", done)
	}
	if view := h.m.View(); !strings.Contains(view, "retry requested for Create physical model") {
		t.Errorf("expected retry flash, got:\n%s", view)
	}

	// Retrying twice is rejected by the server
	h.press("r")
	done = h.waitFor(is[msgs.ActionDoneMsg]).(msgs.ActionDoneMsg)
	if !errors.Is(done.Err, errors.ErrConflict) {
		t.Errorf("expected conflict, got %v", done.Err)
	}
}

func TestModel_EventLog(t *testing.T) {
	h := newHarness(t, demo.Config{})

	h.press("e")
	h.waitFor(is[msgs.EventsLoadedMsg])

	if h.m.Selection().View != selection.EventLog {
		t.Fatalf("expected event log, got %s", h.m.Selection().View)
	}
	if view := h.m.View(); !strings.Contains(view, "Prepared IP "+demo.WatchedIP) {
		t.Errorf("expected seeded event, got:\n%s", view)
	}

	h.press("esc")
	if h.m.Selection().View != selection.None {
		t.Errorf("expected view closed, got %s", h.m.Selection().View)
	}
}

func TestModel_ProfilesAndEdit(t *testing.T) {
	h := newHarness(t, demo.Config{})

	h.press("p")
	h.waitFor(is[msgs.ProfilesLoadedMsg])
	if h.m.Selection().View != selection.Select {
		t.Fatalf("expected select view, got %s", h.m.Selection().View)
	}
	if !h.m.Selection().Panes().EventLog {
		t.Error("expected the event log beside the profiles")
	}

	// aip, content_type, sip
	h.press("down", "down", "enter")
	h.waitFor(is[msgs.SelectProfileMsg])
	want := selection.State{View: selection.Edit, IPID: demo.WatchedIP, ProfileID: "sip"}
	if h.m.Selection() != want {
		t.Fatalf("expected %+v, got %+v", want, h.m.Selection())
	}
	if view := h.m.View(); !strings.Contains(view, "Press x to unlock") {
		t.Fatalf("expected locked sip profile, got:\n%s", view)
	}

	h.press("x")
	loaded := h.waitFor(is[msgs.ProfilesLoadedMsg]).(msgs.ProfilesLoadedMsg)
	if loaded.Err != nil {
		t.Fatalf("expected unlock to succeed, got %v", loaded.Err)
	}
	if view := h.m.View(); !strings.Contains(view, "Not locked.") {
		t.Errorf("expected unlocked profile, got:\n%s", view)
	}

	h.press("esc")
	if h.m.Selection().View != selection.Select {
		t.Errorf("expected esc to leave edit for select, got %s", h.m.Selection().View)
	}
	h.press("esc")
	if h.m.Selection().View != selection.None {
		t.Errorf("expected view closed, got %s", h.m.Selection().View)
	}
}

func TestModel_VanishedIPHidesStatus(t *testing.T) {
	h := newHarness(t, demo.Config{Scenario: demo.ScenarioVanish})
	h.openStatus()

	h.srv.TickN(7)
	h.m.watch.mon.Trigger()
	h.waitFor(is[msgs.EntityGoneMsg])

	if h.m.Selection().View != selection.None {
		t.Errorf("expected the status view hidden, got %s", h.m.Selection().View)
	}
	if !strings.Contains(h.m.flash, "no longer exists") {
		t.Errorf("expected gone message, got %q", h.m.flash)
	}

	loaded := h.waitFor(is[msgs.IPsLoadedMsg]).(msgs.IPsLoadedMsg)
	if loaded.Err != nil || loaded.Page.Count != 13 {
		t.Fatalf("expected refreshed list of 13, got %+v", loaded)
	}
	if view := h.m.View(); !strings.Contains(view, "13 total") {
		t.Errorf("expected refreshed footer, got:\n%s", view)
	}
	if _, err := h.m.snapshots.Load(demo.WatchedIP); !errors.IsNotFound(err) {
		t.Errorf("expected no snapshot, got %v", err)
	}
}

func TestModel_InitialStatusView(t *testing.T) {
	h := newHarnessWith(t, demo.Config{}, selection.State{}.StatusClicked(demo.WatchedIP))
	h.waitFor(is[msgs.TreeUpdatedMsg])

	if h.m.Selection().View != selection.Status {
		t.Errorf("expected status view at start, got %s", h.m.Selection().View)
	}
}

func TestModel_TabSwitchesFocus(t *testing.T) {
	h := newHarness(t, demo.Config{})

	h.press("tab")
	if h.m.focus != focusList {
		t.Error("expected tab to do nothing without an open view")
	}

	h.openStatus()
	h.press("tab")
	if h.m.focus != focusList {
		t.Fatal("expected tab to move focus to the list")
	}
	h.press("down")
	if got := h.m.list.SelectedID(); got != "ip-002" {
		t.Errorf("expected list cursor to move, got %s", got)
	}
}

func TestModel_QuitStopsMonitor(t *testing.T) {
	h := newHarness(t, demo.Config{})
	h.openStatus()

	next, cmd := h.m.Update(key("ctrl+c"))
	h.m = next.(Model)
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if h.m.watch != nil {
		t.Error("expected monitor stopped on quit")
	}
}

func TestBridge_DropsMessagesBeforeAttach(t *testing.T) {
	b := &bridge{}
	b.OnEntityGone("ip-001")

	var got []tea.Msg
	b.attach(func(msg tea.Msg) { got = append(got, msg) })
	b.OnFetchFailed("ip-001", errors.ErrServerError)

	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	if msg, ok := got[0].(msgs.FetchFailedMsg); !ok || msg.IPID != "ip-001" {
		t.Errorf("expected FetchFailedMsg for ip-001, got %#v", got[0])
	}
}

func TestModel_View_TerminalTooSmall(t *testing.T) {
	tests := []struct {
		name        string
		width       int
		height      int
		expectSmall bool
	}{
		{
			name:        "exactly minimum size",
			width:       MinTerminalWidth,
			height:      MinTerminalHeight,
			expectSmall: false,
		},
		{
			name:        "width too small",
			width:       MinTerminalWidth - 1,
			height:      MinTerminalHeight,
			expectSmall: true,
		},
		{
			name:        "height too small",
			width:       MinTerminalWidth,
			height:      MinTerminalHeight - 1,
			expectSmall: true,
		},
		{
			name:        "larger than minimum",
			width:       100,
			height:      50,
			expectSmall: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModel(deps{cfg: config.Default()})
			next, _ := m.Update(tea.WindowSizeMsg{Width: tt.width, Height: tt.height})

			view := next.(Model).View()

			if tt.expectSmall {
				if !strings.Contains(view, "Terminal too small") {
					t.Error("expected view to contain 'Terminal too small'")
				}
				if !strings.Contains(view, "Minimum:") {
					t.Error("expected view to contain 'Minimum:'")
				}
			} else if strings.Contains(view, "Terminal too small") {
				t.Error("did not expect view to contain 'Terminal too small'")
			}
		})
	}
}

func TestModel_renderTerminalTooSmall_ShowsDimensions(t *testing.T) {
	m := newModel(deps{cfg: config.Default()})
	m.width = 50
	m.height = 10

	view := m.renderTerminalTooSmall()

	if !strings.Contains(view, "60x15") {
		t.Error("expected minimum dimensions 60x15 to be shown")
	}
	if !strings.Contains(view, "50x10") {
		t.Error("expected current dimensions 50x10 to be shown")
	}
}
