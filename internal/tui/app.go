// Package tui is the terminal UI of etp: a list of information packages
// with their status trees, event logs and profiles beside it.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"

	"github.com/pablasso/etp/internal/config"
	"github.com/pablasso/etp/internal/demo"
	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/etp"
	"github.com/pablasso/etp/internal/history"
	"github.com/pablasso/etp/internal/logging"
	"github.com/pablasso/etp/internal/monitor"
	"github.com/pablasso/etp/internal/selection"
	"github.com/pablasso/etp/internal/snapshot"
	"github.com/pablasso/etp/internal/statustree"
	"github.com/pablasso/etp/internal/tui/components"
	"github.com/pablasso/etp/internal/tui/msgs"
	"github.com/pablasso/etp/internal/tui/styles"
	"github.com/pablasso/etp/internal/tui/views"
)

// Minimum terminal dimensions for the layout.
const (
	MinTerminalWidth  = 60
	MinTerminalHeight = 15
)

// Client is what the TUI needs from an ETP server. *etp.Client implements
// it.
type Client interface {
	monitor.TreeSource
	ListIPs(ctx context.Context, opts etp.ListOptions) (*etp.Page[etp.InformationPackage], error)
	GetStepTask(ctx context.Context, node *statustree.Node) (*etp.StepTaskDetail, error)
	ListEvents(ctx context.Context, ipID string, page int) (*etp.Page[etp.Event], error)
	GetSAProfiles(ctx context.Context, ipID string) (*etp.SAProfiles, error)
	UnlockProfile(ctx context.Context, ipID, saURL, profileURL string) error
}

type focus int

const (
	focusList focus = iota
	focusPane
)

// watch is the monitor behind the open status view.
type watch struct {
	ipID   string
	mon    *monitor.Monitor
	cancel context.CancelFunc
	// lock is nil when another process watches the IP; the snapshot is
	// then left alone.
	lock *snapshot.WatchLock
}

// deps are the collaborators of a Model.
type deps struct {
	ctx       context.Context
	client    Client
	cfg       *config.Config
	logger    *logging.Logger
	history   history.Recorder
	bridge    *bridge
	serverURL string
	demo      bool
	initial   selection.State
}

// Model is the main Bubble Tea model. The selection decides which pane is
// shown beside the IP list.
type Model struct {
	deps
	snapshots *snapshot.Store

	sel   selection.State
	focus focus
	watch *watch

	list     views.IPListModel
	status   views.StatusModel
	events   views.EventLogModel
	profiles views.ProfilesModel

	flash    string
	flashErr bool

	width  int
	height int
}

// Run starts the TUI application.
func Run(opts Options) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v := viper.New()
	if err := config.Init(v, opts.ConfigFile); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	var initial selection.State
	if opts.Demo != nil {
		url, stop, err := startDemo(ctx, opts.Demo)
		if err != nil {
			return fmt.Errorf("failed to start demo server: %w", err)
		}
		defer stop()
		cfg.Server.URL = url
		cfg.Server.Username = ""
		cfg.Server.Password = ""
		// Keep demo snapshots and history away from real servers' state
		cfg.State.Dir = filepath.Join(cfg.State.Dir, "demo")
		if opts.Demo.Mode == demo.ModeStatus {
			initial = initial.StatusClicked(demo.WatchedIP)
		}
	}

	// The terminal belongs to the UI, so logs always go to a file
	logger, err := logging.NewLogger(cfg.LogDir(), cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Close()

	c, err := etp.FromConfig(cfg, logger)
	if err != nil {
		return err
	}
	rec, err := history.New(cfg.History.Backend, cfg.HistoryDir())
	if err != nil {
		return err
	}
	defer rec.Close()

	b := &bridge{}
	m := newModel(deps{
		ctx:       ctx,
		client:    c,
		cfg:       cfg,
		logger:    logger.WithComponent("tui"),
		history:   rec,
		bridge:    b,
		serverURL: cfg.Server.URL,
		demo:      opts.Demo != nil,
		initial:   initial,
	})

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	b.attach(p.Send)

	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.stopWatch()
	}
	return err
}

func newModel(d deps) Model {
	if d.logger == nil {
		d.logger = logging.NopLogger()
	}
	if d.history == nil {
		d.history = history.Nop{}
	}
	if d.bridge == nil {
		d.bridge = &bridge{}
	}
	return Model{
		deps:      d,
		snapshots: snapshot.NewStore(d.cfg.SnapshotDir()),
		list:      views.NewIPListModel(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.list.Init()}
	if m.initial.View == selection.Status {
		ip := m.initial.IPID
		cmds = append(cmds, func() tea.Msg { return msgs.OpenStatusMsg{IPID: ip} })
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		if m.sel.Panes().EventLog {
			var cmd tea.Cmd
			m.events, cmd = m.events.Update(msg)
			return m, cmd
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.status, cmd = m.status.Update(msg)
		return m, cmd

	// Requests from views

	case msgs.LoadIPsMsg:
		return m, m.loadIPs(msg.Page)
	case msgs.OpenStatusMsg:
		return m, m.setSelection(m.sel.StatusClicked(msg.IPID))
	case msgs.OpenProfilesMsg:
		return m, m.setSelection(m.sel.IPClicked(msg.IPID))
	case msgs.OpenEventsMsg:
		return m, m.setSelection(m.sel.EventsClicked(msg.IPID))
	case msgs.SelectProfileMsg:
		return m, m.setSelection(m.sel.ProfileClicked(msg.Slot))
	case msgs.CloseViewMsg:
		return m, m.setSelection(m.sel.Hide())
	case msgs.LoadEventsMsg:
		return m, m.loadEvents(msg.IPID, msg.Page)
	case msgs.ToggleStepMsg:
		return m, m.act("toggle", msg.NodeID, func(ctx context.Context, mon *monitor.Monitor) error {
			return mon.Toggle(ctx, msg.NodeID)
		})
	case msgs.ChangePageMsg:
		return m, m.act("change page", msg.NodeID, func(ctx context.Context, mon *monitor.Monitor) error {
			return mon.ChangePage(ctx, msg.NodeID, msg.Page)
		})
	case msgs.UndoMsg:
		return m, m.act("undo", msg.NodeID, func(ctx context.Context, mon *monitor.Monitor) error {
			return mon.Undo(ctx, msg.NodeID)
		})
	case msgs.RetryMsg:
		return m, m.act("retry", msg.NodeID, func(ctx context.Context, mon *monitor.Monitor) error {
			return mon.Retry(ctx, msg.NodeID)
		})
	case msgs.ShowDetailMsg:
		return m, m.loadDetail(msg.NodeID)
	case msgs.UnlockProfileMsg:
		return m, m.unlockProfile(msg)

	// Results

	case msgs.IPsLoadedMsg:
		m.list, _ = m.list.Update(msg)
		if msg.Err != nil {
			m.logger.Warn("failed to list information packages", "error", msg.Err)
		}
		return m, nil

	case msgs.TreeUpdatedMsg, msgs.FetchFailedMsg, msgs.DetailLoadedMsg:
		m.status, _ = m.status.Update(msg)
		return m, nil

	case msgs.EntityGoneMsg:
		return m, m.entityGone(msg)

	case msgs.ActionDoneMsg:
		m.status, _ = m.status.Update(msg)
		if msg.Err != nil {
			m.logger.Warn(msg.Op+" failed", "node_id", msg.NodeID, "error", msg.Err)
		}
		return m, nil

	case msgs.EventsLoadedMsg:
		m.events, _ = m.events.Update(msg)
		return m, nil

	case msgs.ProfilesLoadedMsg:
		m.profiles, _ = m.profiles.Update(msg)
		return m, nil

	case msgs.MonitorStoppedMsg:
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) && !errors.IsNotFound(msg.Err) {
			m.logger.Warn("monitor stopped", "ip_id", msg.IPID, "error", msg.Err)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m.quit()
	case "tab":
		if m.sel.View != selection.None {
			m.setFocus(1 - m.focus)
		}
		return m, nil
	case "esc":
		if m.sel.View == selection.Edit {
			return m, m.setSelection(m.sel.ProfileClicked(m.sel.ProfileID))
		}
		if m.sel.View != selection.None {
			return m, m.setSelection(m.sel.Hide())
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.focus == focusList {
		if msg.String() == "q" {
			return m.quit()
		}
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch m.sel.View {
	case selection.Status:
		m.status, cmd = m.status.Update(msg)
	case selection.EventLog:
		m.events, cmd = m.events.Update(msg)
	case selection.Select, selection.Edit:
		// Event paging keys go to the log below the profiles
		switch msg.String() {
		case "n", "b", "pgup", "pgdown":
			m.events, cmd = m.events.Update(msg)
		default:
			m.profiles, cmd = m.profiles.Update(msg)
		}
	}
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.stopWatch()
	return m, tea.Quit
}

// setSelection moves to next, starting and stopping what the panes of the
// new view need.
func (m *Model) setSelection(next selection.State) tea.Cmd {
	prev := m.sel
	m.sel = next
	var cmds []tea.Cmd

	if next.View != selection.Status || (m.watch != nil && m.watch.ipID != next.IPID) {
		m.stopWatch()
	}
	if next.View == selection.Status && m.watch == nil {
		cmds = append(cmds, m.startWatch(next.IPID))
	}

	panes, before := next.Panes(), prev.Panes()
	if panes.EventLog && (!before.EventLog || prev.IPID != next.IPID) {
		m.events = views.NewEventLogModel(next.IPID)
		cmds = append(cmds, m.events.Init())
	}
	if panes.Profiles && (!before.Profiles || prev.IPID != next.IPID) {
		m.profiles = views.NewProfilesModel(next.IPID)
		cmds = append(cmds, m.loadProfiles(next.IPID))
	}
	m.profiles.SetEditing(next.ProfileID)

	if next.View == selection.None {
		m.setFocus(focusList)
	} else {
		m.setFocus(focusPane)
	}
	m.layout()
	return tea.Batch(cmds...)
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusList {
		m.list.Focus()
	} else {
		m.list.Blur()
	}
}

// startWatch opens the status view of ipID and starts its monitor,
// seeded with the remembered tree.
func (m *Model) startWatch(ipID string) tea.Cmd {
	label := ipID
	if ip, ok := m.list.ListedIP(ipID); ok {
		label = ip.DisplayName()
	}
	m.status = views.NewStatusModel(ipID, label)
	m.flash = ""

	opts := monitor.Options{
		Interval:           m.cfg.Monitor.Interval,
		GoneRefreshDelay:   m.cfg.Monitor.GoneRefreshDelay,
		ActionRefreshDelay: m.cfg.Monitor.ActionRefreshDelay,
		Strategy:           m.cfg.Monitor.Strategy,
		Logger:             m.logger,
		History:            m.history,
		Events:             m.bridge,
		ListRefresher:      m.listRefresher(),
	}
	switch snap, err := m.snapshots.Load(ipID); {
	case err == nil:
		opts.Initial = snap.Tree
	case !errors.IsNotFound(err):
		m.logger.WithIP(ipID).Warn("ignoring unreadable snapshot", "error", err)
	}

	lock := snapshot.NewWatchLock(m.cfg.SnapshotDir(), ipID)
	if err := lock.Acquire(); err != nil {
		m.logger.WithIP(ipID).Info("not saving snapshot", "reason", err)
		lock = nil
	}

	mon, err := monitor.New(m.client, ipID, opts)
	if err != nil {
		if lock != nil {
			_ = lock.Release()
		}
		m.setFlash(err.Error(), true)
		return nil
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.watch = &watch{ipID: ipID, mon: mon, cancel: cancel, lock: lock}
	return tea.Batch(m.status.Init(), func() tea.Msg {
		err := mon.Run(ctx)
		cancel()
		return msgs.MonitorStoppedMsg{IPID: ipID, Err: err}
	})
}

// stopWatch stops the monitor of the status view and remembers its tree.
func (m *Model) stopWatch() {
	w := m.watch
	if w == nil {
		return
	}
	m.watch = nil
	w.cancel()
	if w.lock == nil {
		return
	}
	defer w.lock.Release()

	var err error
	if w.mon.Gone() {
		err = m.snapshots.Delete(w.ipID)
	} else if tree := w.mon.Tree(); tree != nil {
		err = m.snapshots.Save(w.ipID, tree)
	}
	if err != nil {
		m.logger.WithIP(w.ipID).Warn("failed to update snapshot", "error", err)
	}
}

// listRefresher reloads the shown list page after the watched IP is gone,
// falling back to the first page when the shown one no longer exists.
func (m *Model) listRefresher() monitor.ListRefresher {
	c, b, page := m.client, m.bridge, m.list.PageNumber()
	return func(ctx context.Context) error {
		p, err := c.ListIPs(ctx, etp.ListOptions{Page: page})
		if errors.IsNotFound(err) && page > 1 {
			p, err = c.ListIPs(ctx, etp.ListOptions{Page: 1})
		}
		if err != nil {
			return err
		}
		b.Send(msgs.IPsLoadedMsg{Page: p})
		return nil
	}
}

func (m *Model) entityGone(msg msgs.EntityGoneMsg) tea.Cmd {
	m.status, _ = m.status.Update(msg)
	w := m.watch
	if w == nil || w.ipID != msg.IPID {
		return nil
	}
	// Run returns by itself once the list refresh it scheduled is done, so
	// the watch is detached rather than cancelled.
	m.watch = nil
	if w.lock != nil {
		if err := m.snapshots.Delete(w.ipID); err != nil {
			m.logger.WithIP(w.ipID).Warn("failed to drop snapshot", "error", err)
		}
		_ = w.lock.Release()
	}
	cmd := m.setSelection(m.sel.Hide())
	m.setFlash(fmt.Sprintf("information package %s no longer exists", msg.IPID), true)
	return cmd
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashErr = isErr
}

func (m Model) loadIPs(page int) tea.Cmd {
	ctx, c := m.ctx, m.client
	return func() tea.Msg {
		p, err := c.ListIPs(ctx, etp.ListOptions{Page: page})
		return msgs.IPsLoadedMsg{Page: p, Err: err}
	}
}

func (m Model) loadEvents(ipID string, page int) tea.Cmd {
	ctx, c := m.ctx, m.client
	return func() tea.Msg {
		p, err := c.ListEvents(ctx, ipID, page)
		return msgs.EventsLoadedMsg{IPID: ipID, Page: p, Err: err}
	}
}

func (m Model) loadProfiles(ipID string) tea.Cmd {
	ctx, c := m.ctx, m.client
	return func() tea.Msg {
		p, err := c.GetSAProfiles(ctx, ipID)
		return msgs.ProfilesLoadedMsg{IPID: ipID, Profiles: p, Err: err}
	}
}

func (m Model) unlockProfile(msg msgs.UnlockProfileMsg) tea.Cmd {
	ctx, c := m.ctx, m.client
	return func() tea.Msg {
		if err := c.UnlockProfile(ctx, msg.IPID, msg.AgreementURL, msg.ProfileURL); err != nil {
			return msgs.ProfilesLoadedMsg{IPID: msg.IPID, Err: fmt.Errorf("unlock %s: %w", msg.Slot, err)}
		}
		p, err := c.GetSAProfiles(ctx, msg.IPID)
		return msgs.ProfilesLoadedMsg{IPID: msg.IPID, Profiles: p, Err: err}
	}
}

func (m Model) loadDetail(nodeID string) tea.Cmd {
	if m.watch == nil {
		return nil
	}
	ctx, c, mon := m.ctx, m.client, m.watch.mon
	return func() tea.Msg {
		node := statustree.Find(mon.Tree(), nodeID)
		if node == nil {
			return msgs.DetailLoadedMsg{NodeID: nodeID, Err: fmt.Errorf("step %s: %w", nodeID, errors.ErrNotFound)}
		}
		d, err := c.GetStepTask(ctx, node)
		return msgs.DetailLoadedMsg{NodeID: nodeID, Detail: d, Err: err}
	}
}

// act runs a tree action on the monitor of the status view.
func (m Model) act(op, nodeID string, fn func(context.Context, *monitor.Monitor) error) tea.Cmd {
	if m.watch == nil {
		return nil
	}
	ctx, mon := m.ctx, m.watch.mon
	return func() tea.Msg {
		return msgs.ActionDoneMsg{Op: op, NodeID: nodeID, Err: fn(ctx, mon)}
	}
}

// layout hands each view its share of the screen.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	// title line and status bar
	bodyHeight := m.height - 2
	// border and padding of a box
	const frameWidth, frameHeight = 4, 2

	listWidth := m.width
	if m.sel.View != selection.None {
		listWidth = m.width * 2 / 5
	}
	m.list.SetSize(listWidth-frameWidth, bodyHeight-frameHeight)

	paneWidth := m.width - listWidth - frameWidth
	paneHeight := bodyHeight - frameHeight
	panes := m.sel.Panes()
	switch {
	case panes.Status:
		m.status.SetSize(paneWidth, paneHeight)
	case panes.Profiles:
		m.profiles.SetSize(paneWidth, paneHeight/2)
		m.events.SetSize(paneWidth, paneHeight-paneHeight/2)
	case panes.EventLog:
		m.events.SetSize(paneWidth, paneHeight)
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.width < MinTerminalWidth || m.height < MinTerminalHeight {
		return m.renderTerminalTooSmall()
	}

	title := styles.SelectedStyle.Render("etp") + styles.SubtleStyle.Render("  "+m.serverURL)
	if m.demo {
		title += styles.WarningStyle.Render("  demo")
	}

	bodyHeight := m.height - 2
	listBox, paneBox := styles.BoxStyle, styles.FocusedBoxStyle
	if m.focus == focusList {
		listBox, paneBox = styles.FocusedBoxStyle, styles.BoxStyle
	}

	var body string
	if m.sel.View == selection.None {
		body = listBox.Width(m.width - 2).Height(bodyHeight - 2).Render(m.list.View())
	} else {
		listWidth := m.width * 2 / 5
		left := listBox.Width(listWidth - 2).Height(bodyHeight - 2).Render(m.list.View())
		right := paneBox.Width(m.width - listWidth - 2).Height(bodyHeight - 2).MaxHeight(bodyHeight).Render(m.paneView())
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	}

	var flash string
	if m.flash != "" {
		if m.flashErr {
			flash = styles.ErrorStyle.Render(m.flash)
		} else {
			flash = styles.SuccessStyle.Render(m.flash)
		}
	}
	bar := components.NewStatusBar().Render(m.width, m.helpItems(), flash)
	return lipgloss.JoinVertical(lipgloss.Left, title, body, bar)
}

func (m Model) paneView() string {
	panes := m.sel.Panes()
	switch {
	case panes.Status:
		return m.status.View()
	case panes.Editor:
		return lipgloss.JoinVertical(lipgloss.Left, m.profiles.View(), "", m.profiles.EditorView(), "", m.events.View())
	case panes.Profiles:
		return lipgloss.JoinVertical(lipgloss.Left, m.profiles.View(), "", m.events.View())
	case panes.EventLog:
		return m.events.View()
	}
	return ""
}

func (m Model) helpItems() []string {
	if m.focus == focusList {
		items := []string{"↑↓ Navigate", "←→ Page", "Enter Status", "p Profiles", "e Events", "R Reload"}
		if m.sel.View != selection.None {
			items = append(items, "Tab Pane")
		}
		return append(items, "q Quit")
	}
	switch m.sel.View {
	case selection.Status:
		return []string{"↑↓ Navigate", "Enter Expand", "[ ] Page", "u Undo", "r Retry", "i Detail", "e Events", "Tab List", "Esc Close"}
	case selection.EventLog:
		return []string{"↑↓ Scroll", "n/b Page", "R Reload", "Tab List", "Esc Close"}
	case selection.Edit:
		return []string{"↑↓ Navigate", "Enter Close profile", "x Unlock", "n/b Events", "Esc Back"}
	default:
		return []string{"↑↓ Navigate", "Enter Edit", "n/b Events", "Tab List", "Esc Close"}
	}
}

func (m Model) renderTerminalTooSmall() string {
	msg := strings.Join([]string{
		styles.ErrorStyle.Render("Terminal too small"),
		"",
		fmt.Sprintf("Minimum: %dx%d", MinTerminalWidth, MinTerminalHeight),
		fmt.Sprintf("Current: %dx%d", m.width, m.height),
	}, "\n")
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, msg)
}

// Selection returns the open view.
func (m Model) Selection() selection.State {
	return m.sel
}
