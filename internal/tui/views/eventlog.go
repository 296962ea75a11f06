package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pablasso/etp/internal/etp"
	"github.com/pablasso/etp/internal/tui/msgs"
	"github.com/pablasso/etp/internal/tui/styles"
)

// EventLogModel shows one page of an IP's events in a scrollable viewport.
type EventLogModel struct {
	ipID     string
	viewport viewport.Model
	page     *etp.Page[etp.Event]
	number   int
	err      error
	loading  bool
	width    int
	height   int
}

// NewEventLogModel creates the event log of ipID.
func NewEventLogModel(ipID string) EventLogModel {
	return EventLogModel{
		ipID:     ipID,
		viewport: viewport.New(60, 10),
		number:   1,
		loading:  true,
	}
}

// Init implements tea.Model.
func (m EventLogModel) Init() tea.Cmd {
	return send(msgs.LoadEventsMsg{IPID: m.ipID, Page: 1})
}

// Update implements tea.Model.
func (m EventLogModel) Update(msg tea.Msg) (EventLogModel, tea.Cmd) {
	switch msg := msg.(type) {
	case msgs.EventsLoadedMsg:
		if msg.IPID != m.ipID {
			return m, nil
		}
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		m.page = msg.Page
		m.number = msg.Page.Number
		m.viewport.SetContent(renderEvents(msg.Page.Results))
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "n":
			if m.page != nil && m.page.HasNext() {
				m.loading = true
				return m, send(msgs.LoadEventsMsg{IPID: m.ipID, Page: m.number + 1})
			}
			return m, nil
		case "b":
			if m.page != nil && m.page.HasPrevious() {
				m.loading = true
				return m, send(msgs.LoadEventsMsg{IPID: m.ipID, Page: m.number - 1})
			}
			return m, nil
		case "R":
			m.loading = true
			return m, send(msgs.LoadEventsMsg{IPID: m.ipID, Page: m.number})
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func renderEvents(events []etp.Event) string {
	if len(events) == 0 {
		return styles.SubtleStyle.Render("No events.")
	}
	var b strings.Builder
	for i, e := range events {
		if i > 0 {
			b.WriteString("\n")
		}
		outcome := e.Outcome
		switch strings.ToLower(outcome) {
		case "success", "0":
			outcome = styles.SuccessStyle.Render("success")
		case "failure", "1":
			outcome = styles.ErrorStyle.Render("failure")
		}
		name := e.TypeName
		if name == "" {
			name = fmt.Sprintf("%d", e.Type)
		}
		b.WriteString(styles.SubtleStyle.Render(e.Time.Local().Format("2006-01-02 15:04:05")))
		fmt.Fprintf(&b, "  %s  %s", name, e.Detail)
		if outcome != "" {
			b.WriteString("  " + outcome)
		}
		if e.Agent != "" {
			b.WriteString(styles.SubtleStyle.Render("  " + e.Agent))
		}
	}
	return b.String()
}

// View implements tea.Model.
func (m EventLogModel) View() string {
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Events of " + m.ipID))
	b.WriteString("\n")

	switch {
	case m.page == nil && m.err != nil:
		b.WriteString(styles.ErrorStyle.Render("Failed to load events: " + m.err.Error()))
		return b.String()
	case m.page == nil:
		b.WriteString(styles.SubtleStyle.Render("Loading events..."))
		return b.String()
	}

	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	footer := fmt.Sprintf("page %d of %d (%d events)", m.number, max(m.page.NumberOfPages, 1), m.page.Count)
	b.WriteString(styles.SubtleStyle.Render(footer))
	if m.err != nil {
		b.WriteString("  " + styles.ErrorStyle.Render(m.err.Error()))
	} else if m.loading {
		b.WriteString("  " + styles.SubtleStyle.Render("loading..."))
	}
	return b.String()
}

// SetSize updates the model dimensions.
func (m *EventLogModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	// title, its margin and the footer
	m.viewport.Height = max(height-3, 3)
}

// IPID returns the id of the IP whose events are shown.
func (m EventLogModel) IPID() string {
	return m.ipID
}
