// Package selection tracks which view of an information package is open.
// A single View value replaces independent visibility flags, so two panes
// can never claim the screen at once.
package selection

// View is the open view.
type View int

const (
	// None shows only the IP list.
	None View = iota
	// Status shows the status tree of an IP.
	Status
	// Select shows the profiles of an IP with its event log.
	Select
	// EventLog shows the events of an IP.
	EventLog
	// Edit shows one profile of the selected IP for editing.
	Edit
)

func (v View) String() string {
	switch v {
	case Status:
		return "status"
	case Select:
		return "select"
	case EventLog:
		return "eventlog"
	case Edit:
		return "edit"
	default:
		return "none"
	}
}

// State is the open view and what it is open on. The zero value shows
// nothing.
type State struct {
	View      View
	IPID      string
	ProfileID string
}

// StatusClicked opens the status view of ip, or closes it when it is
// already open on ip.
func (s State) StatusClicked(ip string) State {
	if s.View == Status && s.IPID == ip {
		return State{IPID: ip}
	}
	return State{View: Status, IPID: ip}
}

// IPClicked opens the select view of ip, or closes it when the select or
// edit view is already open on ip.
func (s State) IPClicked(ip string) State {
	if (s.View == Select || s.View == Edit) && s.IPID == ip {
		return State{IPID: ip}
	}
	return State{View: Select, IPID: ip}
}

// EventsClicked opens the event view of ip, or closes it when it is already
// open on ip.
func (s State) EventsClicked(ip string) State {
	if s.View == EventLog && s.IPID == ip {
		return State{IPID: ip}
	}
	return State{View: EventLog, IPID: ip}
}

// ProfileClicked opens a profile for editing. Clicking the profile being
// edited goes back to the select view. Outside the select and edit views
// it does nothing.
func (s State) ProfileClicked(profile string) State {
	switch {
	case s.View == Edit && s.ProfileID == profile:
		return State{View: Select, IPID: s.IPID}
	case s.View == Select || s.View == Edit:
		return State{View: Edit, IPID: s.IPID, ProfileID: profile}
	default:
		return s
	}
}

// Hide closes every view, for example when the IP no longer exists.
func (s State) Hide() State {
	return State{}
}

// Showing reports whether view v is open on ip.
func (s State) Showing(v View, ip string) bool {
	return s.View == v && s.IPID == ip
}

// Panes lists the panes visible for a view.
type Panes struct {
	Status   bool
	Profiles bool
	Editor   bool
	EventLog bool
}

// Panes returns the panes visible in s.
func (s State) Panes() Panes {
	switch s.View {
	case Status:
		return Panes{Status: true}
	case Select:
		return Panes{Profiles: true, EventLog: true}
	case EventLog:
		return Panes{EventLog: true}
	case Edit:
		return Panes{Profiles: true, Editor: true, EventLog: true}
	default:
		return Panes{}
	}
}
