package etp

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pablasso/etp/internal/statustree"
)

// Page is one page of a paginated list response.
type Page[T any] struct {
	Count    int    `json:"count"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
	Results  []T    `json:"results"`

	// Number and NumberOfPages are computed from the request and Count.
	Number        int `json:"-"`
	NumberOfPages int `json:"-"`
}

func (p *Page[T]) paginate(number, size int) {
	p.Number = number
	if size > 0 {
		p.NumberOfPages = (p.Count + size - 1) / size
	}
}

// HasNext reports whether the server has a following page.
func (p *Page[T]) HasNext() bool { return p.Next != "" }

// HasPrevious reports whether the server has a preceding page.
func (p *Page[T]) HasPrevious() bool { return p.Previous != "" }

// InformationPackage is an IP as listed by the server.
type InformationPackage struct {
	ID                    string     `json:"id" yaml:"id"`
	Label                 string     `json:"label" yaml:"label"`
	ObjectIdentifierValue string     `json:"object_identifier_value" yaml:"object_identifier_value"`
	State                 string     `json:"state" yaml:"state"`
	Responsible           string     `json:"responsible,omitempty" yaml:"responsible,omitempty"`
	CreateDate            *time.Time `json:"create_date,omitempty" yaml:"create_date,omitempty"`
	StepState             string     `json:"step_state,omitempty" yaml:"step_state,omitempty"`
	StatusProgress        int        `json:"status,omitempty" yaml:"status,omitempty"`
	SubmissionAgreement   string     `json:"submission_agreement,omitempty" yaml:"submission_agreement,omitempty"`
	URL                   string     `json:"url" yaml:"url"`
	Locks                 []Lock     `json:"locks,omitempty" yaml:"locks,omitempty"`
}

// DisplayName returns the label, or the object identifier when unlabelled.
func (ip InformationPackage) DisplayName() string {
	if ip.Label != "" {
		return ip.Label
	}
	if ip.ObjectIdentifierValue != "" {
		return ip.ObjectIdentifierValue
	}
	return ip.ID
}

// Lock ties a profile of a submission agreement to an IP.
type Lock struct {
	URL                 string `json:"url" yaml:"url"`
	InformationPackage  string `json:"information_package" yaml:"information_package"`
	SubmissionAgreement string `json:"submission_agreement" yaml:"submission_agreement"`
	Profile             string `json:"profile" yaml:"profile"`
}

// ListOptions filters and pages ListIPs.
type ListOptions struct {
	Page     int
	PageSize int
	Ordering string
	Search   string
	State    string
}

// CreateOptions are sent when creating a SIP.
type CreateOptions struct {
	Validators     map[string]bool `json:"validators"`
	FileConversion bool            `json:"file_conversion"`
}

// SubmitOptions are sent when submitting a SIP. Subject and Body are only
// sent when Email is set.
type SubmitOptions struct {
	Validators map[string]bool
	Email      bool
	Subject    string
	Body       string
}

// StepTaskDetail is the detail of one step or task.
type StepTaskDetail struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	FlowType    string     `json:"flow_type" yaml:"flow_type"`
	Status      string     `json:"status" yaml:"status"`
	Progress    int        `json:"progress" yaml:"progress"`
	User        string     `json:"user,omitempty" yaml:"user,omitempty"`
	TimeStarted *time.Time `json:"time_started,omitempty" yaml:"time_started,omitempty"`
	TimeDone    *time.Time `json:"time_done,omitempty" yaml:"time_done,omitempty"`
	Exception   string     `json:"exception,omitempty" yaml:"exception,omitempty"`
	Traceback   string     `json:"traceback,omitempty" yaml:"traceback,omitempty"`
	Result      string     `json:"result,omitempty" yaml:"result,omitempty"`
	Undone      bool       `json:"undone" yaml:"undone"`

	// Duration is TimeDone minus TimeStarted, zero while running.
	Duration time.Duration `json:"-" yaml:"duration,omitempty"`
}

func (d *StepTaskDetail) computeDuration() {
	if d.TimeStarted != nil && d.TimeDone != nil {
		d.Duration = d.TimeDone.Sub(*d.TimeStarted)
	}
}

// Event is one entry in an IP's event log.
type Event struct {
	ID          string    `json:"id" yaml:"id"`
	Type        int       `json:"event_type" yaml:"event_type"`
	TypeName    string    `json:"event_type_name,omitempty" yaml:"event_type_name,omitempty"`
	Detail      string    `json:"event_detail" yaml:"event_detail"`
	Outcome     string    `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Agent       string    `json:"agent,omitempty" yaml:"agent,omitempty"`
	Time        time.Time `json:"event_time" yaml:"event_time"`
	Information string    `json:"information_package,omitempty" yaml:"information_package,omitempty"`
}

// Profile is a metadata profile referenced by a submission agreement.
type Profile struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"profile_type" yaml:"profile_type"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// ProfilePrefix prefixes the profile slot fields of a submission agreement.
const ProfilePrefix = "profile_"

// SubmissionAgreement keeps the full server record so it can be copied
// between servers. Profiles maps slot names (such as "sip") to profile ids
// for the slots that are set.
type SubmissionAgreement struct {
	ID        string
	Name      string
	URL       string
	Published bool
	Profiles  map[string]string

	Raw map[string]any
}

func (sa *SubmissionAgreement) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*sa = SubmissionAgreement{Raw: raw, Profiles: map[string]string{}}
	sa.ID = stringField(raw, "id")
	sa.Name = stringField(raw, "name")
	sa.URL = stringField(raw, "url")
	sa.Published, _ = raw["published"].(bool)
	for k, v := range raw {
		if !strings.HasPrefix(k, ProfilePrefix) {
			continue
		}
		if id, ok := v.(string); ok && id != "" {
			sa.Profiles[strings.TrimPrefix(k, ProfilePrefix)] = id
		}
	}
	return nil
}

func (sa SubmissionAgreement) MarshalJSON() ([]byte, error) {
	if sa.Raw != nil {
		return json.Marshal(sa.Raw)
	}
	out := map[string]any{"id": sa.ID, "name": sa.Name, "published": sa.Published}
	for slot, id := range sa.Profiles {
		out[ProfilePrefix+slot] = id
	}
	return json.Marshal(out)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// ProfileSlot is one profile of an IP's submission agreement.
type ProfileSlot struct {
	Slot      string `json:"slot" yaml:"slot"`
	ProfileID string `json:"profile_id" yaml:"profile_id"`
	Profile   *Profile
	Locked    bool `json:"locked" yaml:"locked"`
}

// SAProfiles is the submission agreement of an IP with its profiles.
type SAProfiles struct {
	Agreement *SubmissionAgreement
	Slots     []ProfileSlot
}

// apiNode is a step or task as the server sends it.
type apiNode struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	FlowType    string     `json:"flow_type"`
	User        string     `json:"user"`
	TimeStarted *time.Time `json:"time_started"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Undone      bool       `json:"undone"`
	URL         string     `json:"url"`
	ChildCount  int        `json:"child_count"`
}

func (a apiNode) toNode() *statustree.Node {
	n := &statustree.Node{
		ID:          a.ID,
		Name:        a.Name,
		Kind:        statustree.KindTask,
		User:        a.User,
		TimeStarted: a.TimeStarted,
		Status:      statustree.Status(a.Status),
		Progress:    a.Progress,
		Undone:      a.Undone,
		URL:         a.URL,
	}
	if a.FlowType == string(statustree.KindStep) {
		n.Kind = statustree.KindStep
		if a.ChildCount > 0 {
			n.ChildState = statustree.ChildrenPending
		}
	}
	return n
}

func toNodes(in []apiNode) []*statustree.Node {
	out := make([]*statustree.Node, len(in))
	for i, a := range in {
		out[i] = a.toNode()
	}
	return out
}
