package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/pablasso/etp/internal/etp"
	"github.com/pablasso/etp/internal/statustree"
	"github.com/pablasso/etp/internal/tui/components"
	"github.com/pablasso/etp/internal/tui/msgs"
	"github.com/pablasso/etp/internal/tui/styles"
)

const progressWidth = 10

// StatusModel shows the status tree of one IP with a cursor on one row.
type StatusModel struct {
	ipID  string
	label string

	tree   []*statustree.Node
	rows   []statustree.Row
	cursor int
	offset int

	loaded      bool
	gone        bool
	fetchErr    error
	lastRefresh time.Time

	// flash is the outcome of the last action
	flash    string
	flashErr bool

	detail     *etp.StepTaskDetail
	detailErr  error
	showDetail bool

	spinner spinner.Model
	now     func() time.Time

	width  int
	height int
}

// NewStatusModel creates the status view of ipID, titled label.
func NewStatusModel(ipID, label string) StatusModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SelectedStyle

	return StatusModel{
		ipID:    ipID,
		label:   label,
		spinner: s,
		now:     time.Now,
	}
}

// Init implements tea.Model.
func (m StatusModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m StatusModel) Update(msg tea.Msg) (StatusModel, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		// Spin only until the first tree arrives
		if m.loaded || m.gone {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case msgs.TreeUpdatedMsg:
		if msg.IPID != m.ipID {
			return m, nil
		}
		selected := m.SelectedID()
		m.tree = msg.Tree
		m.rows = statustree.Visible(msg.Tree)
		m.loaded = true
		m.gone = false
		m.fetchErr = nil
		m.lastRefresh = m.now()
		m.restoreCursor(selected)
		return m, nil

	case msgs.EntityGoneMsg:
		if msg.IPID != m.ipID {
			return m, nil
		}
		m.gone = true
		m.tree = nil
		m.rows = nil
		m.cursor = 0
		m.offset = 0
		m.showDetail = false
		return m, nil

	case msgs.FetchFailedMsg:
		if msg.IPID == m.ipID {
			m.fetchErr = msg.Err
		}
		return m, nil

	case msgs.ActionDoneMsg:
		name := msg.NodeID
		if n := statustree.Find(m.tree, msg.NodeID); n != nil {
			name = n.Name
		}
		if msg.Err != nil {
			m.flash = fmt.Sprintf("%s %s failed: %v", msg.Op, name, msg.Err)
			m.flashErr = true
		} else if msg.Op == "undo" || msg.Op == "retry" {
			m.flash = fmt.Sprintf("%s requested for %s", msg.Op, name)
			m.flashErr = false
		}
		return m, nil

	case msgs.DetailLoadedMsg:
		if msg.NodeID != m.SelectedID() {
			return m, nil
		}
		m.detail = msg.Detail
		m.detailErr = msg.Err
		m.showDetail = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}
	return m, nil
}

func (m StatusModel) handleKeyPress(msg tea.KeyMsg) (StatusModel, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.showDetail = false
		}
		m.clampOffset()
		return m, nil
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
			m.showDetail = false
		}
		m.clampOffset()
		return m, nil
	case "e":
		return m, send(msgs.OpenEventsMsg{IPID: m.ipID})
	}

	n := m.Selected()
	if n == nil {
		return m, nil
	}

	switch msg.String() {
	case "enter", " ":
		if n.IsStep() {
			return m, send(msgs.ToggleStepMsg{NodeID: n.ID})
		}
	case "]":
		if step := m.pagedStep(); step != nil && step.NextPage != 0 {
			return m, send(msgs.ChangePageMsg{NodeID: step.ID, Page: step.PageNumber + 1})
		}
	case "[":
		if step := m.pagedStep(); step != nil && step.PrevPage != 0 {
			return m, send(msgs.ChangePageMsg{NodeID: step.ID, Page: step.PageNumber - 1})
		}
	case "u":
		m.flash = ""
		return m, send(msgs.UndoMsg{NodeID: n.ID})
	case "r":
		m.flash = ""
		return m, send(msgs.RetryMsg{NodeID: n.ID})
	case "i":
		if m.showDetail {
			m.showDetail = false
			return m, nil
		}
		return m, send(msgs.ShowDetailMsg{NodeID: n.ID})
	}
	return m, nil
}

func send(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// pagedStep is the expanded step under the cursor, or the step whose
// children page the cursor is on.
func (m StatusModel) pagedStep() *statustree.Node {
	if m.cursor >= len(m.rows) {
		return nil
	}
	row := m.rows[m.cursor]
	if row.Node.IsStep() && row.Node.Expanded {
		return row.Node
	}
	for i := m.cursor - 1; i >= 0; i-- {
		if m.rows[i].Depth < row.Depth {
			return m.rows[i].Node
		}
	}
	return nil
}

// restoreCursor keeps the cursor on the node with id when it is still
// visible, or in place otherwise.
func (m *StatusModel) restoreCursor(id string) {
	for i, r := range m.rows {
		if r.Node.ID == id {
			m.cursor = i
			m.clampOffset()
			return
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
	m.clampOffset()
}

func (m *StatusModel) treeHeight() int {
	// title, summary, blank line, flash and the refresh line
	h := m.height - 5
	if m.showDetail {
		h -= detailHeight
	}
	return max(h, 3)
}

func (m *StatusModel) clampOffset() {
	h := m.treeHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// View implements tea.Model.
func (m StatusModel) View() string {
	var b strings.Builder
	title := m.ipID
	if m.label != "" && m.label != m.ipID {
		title = fmt.Sprintf("%s (%s)", m.label, m.ipID)
	}
	b.WriteString(styles.TitleStyle.Render(title))
	b.WriteString("\n")

	switch {
	case m.gone:
		b.WriteString(styles.ErrorStyle.Render("This information package no longer exists."))
		return b.String()
	case !m.loaded && m.fetchErr != nil:
		b.WriteString(styles.ErrorStyle.Render("Failed to load status: " + m.fetchErr.Error()))
		return b.String()
	case !m.loaded:
		b.WriteString(m.spinner.View() + " Loading status...")
		return b.String()
	}

	s := statustree.Summarize(m.tree)
	b.WriteString(styles.SubtleStyle.Render(fmt.Sprintf("%d/%d done, %d failed, %d undone, %d%%",
		s.Succeeded+s.Failed, s.Total, s.Failed, s.Undone, s.Progress)))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(styles.SubtleStyle.Render("No steps."))
	}
	end := min(m.offset+m.treeHeight(), len(m.rows))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(i))
		b.WriteString("\n")
	}

	if m.showDetail {
		b.WriteString("\n")
		b.WriteString(m.renderDetail())
		b.WriteString("\n")
	}

	if m.flash != "" {
		style := styles.SuccessStyle
		if m.flashErr {
			style = styles.ErrorStyle
		}
		b.WriteString(style.Render(m.flash))
		b.WriteString("\n")
	}
	if m.fetchErr != nil {
		b.WriteString(styles.ErrorStyle.Render("refresh failed: " + m.fetchErr.Error()))
	} else if !m.lastRefresh.IsZero() {
		b.WriteString(styles.SubtleStyle.Render("refreshed " + humanize.RelTime(m.lastRefresh, m.now(), "ago", "from now")))
	}
	return b.String()
}

func (m StatusModel) renderRow(i int) string {
	r := m.rows[i]
	n := r.Node

	marker := "•"
	if n.IsStep() {
		marker = "▸"
		if n.Expanded {
			marker = "▾"
		}
	}

	indicator := "  "
	if i == m.cursor {
		indicator = "> "
	}

	name := strings.Repeat("  ", r.Depth) + marker + " " + n.Name
	if i == m.cursor {
		name = styles.SelectedStyle.Render(name)
	}

	line := indicator + name + "  " + styles.Status(n) + "  " + components.NewProgress(n.Progress, progressWidth).View()
	if n.User != "" {
		line += styles.SubtleStyle.Render("  " + n.User)
	}
	if n.Expanded && (n.NextPage != 0 || n.PrevPage != 0) {
		pages := fmt.Sprintf("  page %d", n.PageNumber)
		if n.PrevPage != 0 {
			pages += " [prev"
		}
		if n.NextPage != 0 {
			pages += " next]"
		}
		line += styles.SubtleStyle.Render(pages)
	}
	return line
}

const detailHeight = 8

func (m StatusModel) renderDetail() string {
	if m.detailErr != nil {
		return styles.ErrorStyle.Render("Failed to load detail: " + m.detailErr.Error())
	}
	d := m.detail
	if d == nil {
		return ""
	}

	lines := []string{
		styles.SelectedStyle.Render(d.Name),
		fmt.Sprintf("Status:   %s (%d%%)", d.Status, d.Progress),
	}
	if d.TimeStarted != nil {
		lines = append(lines, "Started:  "+d.TimeStarted.Local().Format("2006-01-02 15:04:05"))
	}
	if d.Duration > 0 {
		lines = append(lines, "Duration: "+d.Duration.Round(time.Second).String())
	}
	if d.User != "" {
		lines = append(lines, "User:     "+d.User)
	}
	if d.Exception != "" {
		lines = append(lines, styles.ErrorStyle.Render("Exception: "+d.Exception))
	}
	if d.Traceback != "" {
		tb := strings.Split(strings.TrimSpace(d.Traceback), "\n")
		// the last lines of a traceback name the failure
		if len(tb) > 2 {
			tb = tb[len(tb)-2:]
		}
		for _, l := range tb {
			lines = append(lines, styles.SubtleStyle.Render(l))
		}
	}
	if len(lines) > detailHeight-2 {
		lines = lines[:detailHeight-2]
	}
	return styles.BoxStyle.Width(max(m.width-2, 20)).Render(strings.Join(lines, "\n"))
}

// SetSize updates the model dimensions.
func (m *StatusModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.clampOffset()
}

// IPID returns the id of the IP being shown.
func (m StatusModel) IPID() string {
	return m.ipID
}

// Selected returns the node under the cursor.
func (m StatusModel) Selected() *statustree.Node {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].Node
}

// SelectedID returns the id of the node under the cursor.
func (m StatusModel) SelectedID() string {
	if n := m.Selected(); n != nil {
		return n.ID
	}
	return ""
}

// Loaded reports whether a tree has been shown.
func (m StatusModel) Loaded() bool {
	return m.loaded
}

// Gone reports whether the IP was reported missing.
func (m StatusModel) Gone() bool {
	return m.gone
}
