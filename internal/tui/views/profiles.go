package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pablasso/etp/internal/etp"
	"github.com/pablasso/etp/internal/tui/msgs"
	"github.com/pablasso/etp/internal/tui/styles"
)

// ProfilesModel lists the profile slots of an IP's submission agreement.
// The slot being edited, if any, is shown in a second pane.
type ProfilesModel struct {
	ipID     string
	profiles *etp.SAProfiles
	err      error
	cursor   int
	editing  string
	width    int
	height   int
}

// NewProfilesModel creates the profile view of ipID.
func NewProfilesModel(ipID string) ProfilesModel {
	return ProfilesModel{ipID: ipID}
}

// Update implements tea.Model.
func (m ProfilesModel) Update(msg tea.Msg) (ProfilesModel, tea.Cmd) {
	switch msg := msg.(type) {
	case msgs.ProfilesLoadedMsg:
		if msg.IPID != m.ipID {
			return m, nil
		}
		m.profiles = msg.Profiles
		m.err = msg.Err
		if m.cursor >= len(m.slots()) {
			m.cursor = max(len(m.slots())-1, 0)
		}
		return m, nil

	case tea.KeyMsg:
		slots := m.slots()
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(slots)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor < len(slots) {
				return m, send(msgs.SelectProfileMsg{Slot: slots[m.cursor].Slot})
			}
		case "x":
			if s := m.slot(m.editing); s != nil && s.Locked && s.Profile != nil && m.profiles.Agreement != nil {
				return m, send(msgs.UnlockProfileMsg{
					IPID:         m.ipID,
					Slot:         s.Slot,
					AgreementURL: m.profiles.Agreement.URL,
					ProfileURL:   s.Profile.URL,
				})
			}
		}
	}
	return m, nil
}

func (m ProfilesModel) slots() []etp.ProfileSlot {
	if m.profiles == nil {
		return nil
	}
	return m.profiles.Slots
}

func (m ProfilesModel) slot(name string) *etp.ProfileSlot {
	if name == "" {
		return nil
	}
	slots := m.slots()
	for i := range slots {
		if slots[i].Slot == name {
			return &slots[i]
		}
	}
	return nil
}

// SetEditing marks slot as the one shown in the editor pane. An empty slot
// closes the editor.
func (m *ProfilesModel) SetEditing(slot string) {
	m.editing = slot
}

// View implements tea.Model.
func (m ProfilesModel) View() string {
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Profiles of " + m.ipID))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.ErrorStyle.Render("Failed to load profiles: " + m.err.Error()))
		return b.String()
	case m.profiles == nil:
		b.WriteString(styles.SubtleStyle.Render("Loading profiles..."))
		return b.String()
	}

	if sa := m.profiles.Agreement; sa != nil {
		b.WriteString(styles.SubtleStyle.Render("Submission agreement: " + sa.Name))
		b.WriteString("\n")
	}
	if len(m.profiles.Slots) == 0 {
		b.WriteString(styles.SubtleStyle.Render("No profiles."))
		return b.String()
	}
	for i, s := range m.profiles.Slots {
		indicator := "○"
		if i == m.cursor {
			indicator = "●"
		}
		name := "-"
		if s.Profile != nil {
			name = s.Profile.Name
		}
		line := fmt.Sprintf("%s %-22s %s", indicator, s.Slot, name)
		if s.Locked {
			line += "  locked"
		}
		if i == m.cursor {
			line = styles.SelectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// EditorView renders the slot being edited.
func (m ProfilesModel) EditorView() string {
	s := m.slot(m.editing)
	if s == nil {
		return styles.SubtleStyle.Render("No profile selected.")
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Profile " + s.Slot))
	b.WriteString("\n")
	if s.Profile == nil {
		fmt.Fprintf(&b, "ID:      %s\n", s.ProfileID)
	} else {
		fmt.Fprintf(&b, "Name:    %s\n", s.Profile.Name)
		fmt.Fprintf(&b, "ID:      %s\n", s.Profile.ID)
		fmt.Fprintf(&b, "Type:    %s\n", s.Profile.Type)
		if s.Profile.Version != "" {
			fmt.Fprintf(&b, "Version: %s\n", s.Profile.Version)
		}
	}
	if s.Locked {
		b.WriteString(styles.WarningStyle.Render("Locked to this information package. Press x to unlock."))
	} else {
		b.WriteString(styles.SubtleStyle.Render("Not locked."))
	}
	return b.String()
}

// SetSize updates the model dimensions.
func (m *ProfilesModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// IPID returns the id of the IP whose profiles are shown.
func (m ProfilesModel) IPID() string {
	return m.ipID
}

// Editing returns the slot shown in the editor pane.
func (m ProfilesModel) Editing() string {
	return m.editing
}
