// Package msgs defines the message types shared by the TUI views and the
// application model.
package msgs

import (
	"github.com/pablasso/etp/internal/etp"
	"github.com/pablasso/etp/internal/statustree"
)

// Requests sent by views. The application model performs them.

// LoadIPsMsg asks for a page of the IP list.
type LoadIPsMsg struct {
	Page int
}

// OpenStatusMsg toggles the status view of an IP.
type OpenStatusMsg struct {
	IPID string
}

// OpenProfilesMsg toggles the profile view of an IP.
type OpenProfilesMsg struct {
	IPID string
}

// OpenEventsMsg toggles the event log of an IP.
type OpenEventsMsg struct {
	IPID string
}

// SelectProfileMsg toggles editing of one profile slot.
type SelectProfileMsg struct {
	Slot string
}

// CloseViewMsg hides the open view and returns focus to the IP list.
type CloseViewMsg struct{}

// LoadEventsMsg asks for a page of an IP's event log.
type LoadEventsMsg struct {
	IPID string
	Page int
}

// ToggleStepMsg expands or collapses a step.
type ToggleStepMsg struct {
	NodeID string
}

// ChangePageMsg moves a step to another page of its children.
type ChangePageMsg struct {
	NodeID string
	Page   int
}

// UndoMsg undoes a step or task.
type UndoMsg struct {
	NodeID string
}

// RetryMsg retries a step or task.
type RetryMsg struct {
	NodeID string
}

// ShowDetailMsg asks for the detail of a step or task.
type ShowDetailMsg struct {
	NodeID string
}

// UnlockProfileMsg removes the lock of a profile slot of an IP.
type UnlockProfileMsg struct {
	IPID         string
	Slot         string
	AgreementURL string
	ProfileURL   string
}

// Results delivered to views.

// IPsLoadedMsg carries a page of the IP list.
type IPsLoadedMsg struct {
	Page *etp.Page[etp.InformationPackage]
	Err  error
}

// TreeUpdatedMsg carries a reconciled status tree.
type TreeUpdatedMsg struct {
	IPID string
	Tree []*statustree.Node
	Diff statustree.Diff
}

// EntityGoneMsg reports that an IP no longer exists on the server.
type EntityGoneMsg struct {
	IPID string
}

// FetchFailedMsg reports a failed tree refresh. The tree is unchanged.
type FetchFailedMsg struct {
	IPID string
	Err  error
}

// MonitorStoppedMsg is sent when the monitor of an IP has returned.
type MonitorStoppedMsg struct {
	IPID string
	Err  error
}

// ActionDoneMsg reports the outcome of a tree action.
type ActionDoneMsg struct {
	Op     string
	NodeID string
	Err    error
}

// DetailLoadedMsg carries the detail of a step or task.
type DetailLoadedMsg struct {
	NodeID string
	Detail *etp.StepTaskDetail
	Err    error
}

// EventsLoadedMsg carries a page of an IP's event log.
type EventsLoadedMsg struct {
	IPID string
	Page *etp.Page[etp.Event]
	Err  error
}

// ProfilesLoadedMsg carries the submission agreement and profiles of an IP.
type ProfilesLoadedMsg struct {
	IPID     string
	Profiles *etp.SAProfiles
	Err      error
}
