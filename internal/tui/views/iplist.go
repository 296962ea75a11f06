package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pablasso/etp/internal/etp"
	"github.com/pablasso/etp/internal/tui/msgs"
	"github.com/pablasso/etp/internal/tui/styles"
)

// IPListModel shows one page of information packages in a table.
type IPListModel struct {
	table   table.Model
	page    *etp.Page[etp.InformationPackage]
	number  int
	err     error
	loading bool
	width   int
	height  int
}

// NewIPListModel creates an empty list waiting for its first page.
func NewIPListModel() IPListModel {
	t := table.New(
		table.WithColumns(ipColumns(60)),
		table.WithFocused(true),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.SecondaryColor).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(styles.PrimaryColor).
		Bold(true)
	t.SetStyles(s)

	return IPListModel{table: t, number: 1, loading: true}
}

// ipColumns sizes the label column to what is left of width.
func ipColumns(width int) []table.Column {
	const (
		idWidth     = 10
		stateWidth  = 10
		statusWidth = 6
		padding     = 8 // one cell of padding on each side of four columns
	)
	label := width - idWidth - stateWidth - statusWidth - padding
	if label < 12 {
		label = 12
	}
	return []table.Column{
		{Title: "ID", Width: idWidth},
		{Title: "Label", Width: label},
		{Title: "State", Width: stateWidth},
		{Title: "Status", Width: statusWidth},
	}
}

func ipRows(ips []etp.InformationPackage) []table.Row {
	rows := make([]table.Row, 0, len(ips))
	for _, ip := range ips {
		rows = append(rows, table.Row{
			ip.ID,
			ip.DisplayName(),
			ip.State,
			fmt.Sprintf("%d%%", ip.StatusProgress),
		})
	}
	return rows
}

func load(page int) tea.Cmd {
	return func() tea.Msg { return msgs.LoadIPsMsg{Page: page} }
}

// Init implements tea.Model.
func (m IPListModel) Init() tea.Cmd {
	return load(1)
}

// Update implements tea.Model.
func (m IPListModel) Update(msg tea.Msg) (IPListModel, tea.Cmd) {
	switch msg := msg.(type) {
	case msgs.IPsLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		m.page = msg.Page
		m.number = msg.Page.Number
		m.table.SetRows(ipRows(msg.Page.Results))
		if n := len(msg.Page.Results); m.table.Cursor() >= n {
			m.table.SetCursor(max(n-1, 0))
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "left", "h":
			if m.page != nil && m.page.HasPrevious() {
				m.loading = true
				return m, load(m.number - 1)
			}
			return m, nil
		case "right", "l":
			if m.page != nil && m.page.HasNext() {
				m.loading = true
				return m, load(m.number + 1)
			}
			return m, nil
		case "R":
			m.loading = true
			return m, load(m.number)
		case "enter":
			return m, m.open(func(id string) tea.Msg { return msgs.OpenStatusMsg{IPID: id} })
		case "p":
			return m, m.open(func(id string) tea.Msg { return msgs.OpenProfilesMsg{IPID: id} })
		case "e":
			return m, m.open(func(id string) tea.Msg { return msgs.OpenEventsMsg{IPID: id} })
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m IPListModel) open(build func(id string) tea.Msg) tea.Cmd {
	id := m.SelectedID()
	if id == "" {
		return nil
	}
	return func() tea.Msg { return build(id) }
}

// View implements tea.Model.
func (m IPListModel) View() string {
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Information packages"))
	b.WriteString("\n")

	switch {
	case m.page == nil && m.err != nil:
		b.WriteString(styles.ErrorStyle.Render(m.err.Error()))
		return b.String()
	case m.page == nil:
		b.WriteString(styles.SubtleStyle.Render("Loading..."))
		return b.String()
	case len(m.page.Results) == 0:
		b.WriteString(styles.SubtleStyle.Render("No information packages."))
		return b.String()
	}

	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m IPListModel) footer() string {
	footer := fmt.Sprintf("page %d of %d (%d total)", m.number, max(m.page.NumberOfPages, 1), m.page.Count)
	if m.page.HasPrevious() {
		footer = "‹ " + footer
	}
	if m.page.HasNext() {
		footer += " ›"
	}
	line := styles.SubtleStyle.Render(footer)
	switch {
	case m.err != nil:
		line += "  " + styles.ErrorStyle.Render(m.err.Error())
	case m.loading:
		line += "  " + styles.SubtleStyle.Render("loading...")
	}
	return line
}

// SetSize updates the model dimensions.
func (m *IPListModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(ipColumns(width))
	m.table.SetWidth(width)
	// title, its margin and the footer
	m.table.SetHeight(max(height-3, 3))
}

// Focus gives the table the keyboard.
func (m *IPListModel) Focus() { m.table.Focus() }

// Blur takes the keyboard away from the table.
func (m *IPListModel) Blur() { m.table.Blur() }

// SelectedID returns the id of the IP under the cursor.
func (m IPListModel) SelectedID() string {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

// ListedIP returns the listed IP with the given id.
func (m IPListModel) ListedIP(id string) (etp.InformationPackage, bool) {
	if m.page == nil {
		return etp.InformationPackage{}, false
	}
	for _, ip := range m.page.Results {
		if ip.ID == id {
			return ip, true
		}
	}
	return etp.InformationPackage{}, false
}

// PageNumber returns the page being shown.
func (m IPListModel) PageNumber() int {
	return m.number
}
