package demo

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WatchedIP is the IP the demo workflow runs on.
const WatchedIP = "ip-001"

// Event types written by the simulated server.
const (
	EventPrepared   = 10100
	EventUploaded   = 10200
	EventCreated    = 10300
	EventSubmitted  = 10400
	EventUndo       = 10500
	EventRetry      = 10600
	EventUserDefine = 50000
)

var eventTypeNames = map[int]string{
	EventPrepared:   "Prepared IP",
	EventUploaded:   "Uploaded content",
	EventCreated:    "Created SIP",
	EventSubmitted:  "Submitted SIP",
	EventUndo:       "Undo",
	EventRetry:      "Retry",
	EventUserDefine: "User defined",
}

type ip struct {
	ID          string
	Label       string
	ObjectID    string
	State       string
	Responsible string
	Created     time.Time
	SA          string
	workflow    *workflow
}

type event struct {
	ID      string
	IPID    string
	Type    int
	Detail  string
	Outcome string
	Agent   string
	Time    time.Time
}

type lock struct {
	ID        string
	IPID      string
	SAID      string
	ProfileID string
}

// store is the in-memory state of a simulated server.
type store struct {
	mu       sync.Mutex
	cfg      Config
	ips      map[string]*ip
	order    []string
	events   []*event
	sas      map[string]map[string]any
	saOrder  []string
	profiles map[string]map[string]any
	locks    map[string]*lock
	ticks    int
	requests int
}

func newStore(cfg Config) *store {
	s := &store{
		cfg:      cfg,
		ips:      map[string]*ip{},
		sas:      map[string]map[string]any{},
		profiles: map[string]map[string]any{},
		locks:    map[string]*lock{},
	}
	s.seed()
	return s
}

func (s *store) seed() {
	now := s.cfg.now()
	user := "admin"
	if !s.cfg.SkipAgreements {
		s.seedAgreements()
	}

	labels := []string{
		"Annual report 2016", "Board minutes 2015", "Building permits",
		"Correspondence batch 1", "Correspondence batch 2", "Correspondence batch 3",
		"Election results", "Employee records", "Environmental permits",
		"Financial statements", "Land registry extract", "Meeting recordings",
		"School archive", "Tax assessments",
	}
	states := []string{"Creating", "Prepared", "Uploaded", "Created", "Submitted"}
	for i, label := range labels {
		id := fmt.Sprintf("ip-%03d", i+1)
		rec := &ip{
			ID:          id,
			Label:       label,
			ObjectID:    fmt.Sprintf("OBJ-%04d", 1000+i),
			State:       states[i%len(states)],
			Responsible: user,
			Created:     now.Add(-time.Duration(len(labels)-i) * time.Hour),
			SA:          "sa-001",
			workflow:    newWorkflow(id, user, defaultLayout),
		}
		if id != WatchedIP {
			rec.workflow.complete(rec.Created)
		}
		s.ips[id] = rec
		s.order = append(s.order, id)
	}
	if !s.cfg.SkipAgreements {
		s.locks["lock-001"] = &lock{ID: "lock-001", IPID: WatchedIP, SAID: "sa-001", ProfileID: "p-sip"}
	}
	s.addEvent(WatchedIP, EventPrepared, "Prepared IP "+WatchedIP, user)
}

func (s *store) seedAgreements() {
	for _, p := range []struct{ id, name, typ string }{
		{"p-tp", "Transfer project 2016", "transfer_project"},
		{"p-sd", "Submit description SE", "submit_description"},
		{"p-sip", "SIP profile SE", "sip"},
		{"p-aip", "AIP profile SE", "aip"},
		{"p-ct", "Content type ERMS", "content_type"},
	} {
		s.profiles[p.id] = map[string]any{"id": p.id, "name": p.name, "profile_type": p.typ, "version": "1.0"}
	}

	s.addSA(map[string]any{
		"id":                         "sa-001",
		"name":                       "SA National Archive and Government",
		"published":                  true,
		"type":                       "Standard",
		"profile_transfer_project":   "p-tp",
		"profile_submit_description": "p-sd",
		"profile_sip":                "p-sip",
		"profile_aip":                "p-aip",
		"profile_content_type":       "p-ct",
		"profile_dip":                nil,
	})
	s.addSA(map[string]any{
		"id":          "sa-002",
		"name":        "SA Municipal Records (draft)",
		"published":   false,
		"type":        "Standard",
		"profile_sip": "p-sip",
	})
}

func (s *store) addSA(sa map[string]any) {
	id := sa["id"].(string)
	s.sas[id] = sa
	s.saOrder = append(s.saOrder, id)
}

func (s *store) addEvent(ipID string, typ int, detail, agent string) *event {
	ev := &event{
		ID:      uuid.NewString(),
		IPID:    ipID,
		Type:    typ,
		Detail:  detail,
		Outcome: "success",
		Agent:   agent,
		Time:    s.cfg.now(),
	}
	s.events = append(s.events, ev)
	return ev
}

// tick advances the watched workflow by one step.
func (s *store) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticks++
	if s.cfg.Scenario == ScenarioVanish && s.ticks > vanishAfter {
		s.removeIP(WatchedIP)
		return
	}
	if rec, ok := s.ips[WatchedIP]; ok {
		rec.workflow.advance(s.cfg.now(), s.cfg.Scenario)
		if rec.workflow.done() && rec.State == "Creating" {
			rec.State = "Created"
			s.addEvent(rec.ID, EventCreated, "Created SIP "+rec.ID, rec.Responsible)
		}
	}
}

func (s *store) removeIP(id string) bool {
	if _, ok := s.ips[id]; !ok {
		return false
	}
	delete(s.ips, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	for lid, l := range s.locks {
		if l.IPID == id {
			delete(s.locks, lid)
		}
	}
	return true
}

// flaky reports whether this tree request should fail.
func (s *store) flaky() bool {
	if s.cfg.Scenario != ScenarioFlaky {
		return false
	}
	s.requests++
	return s.requests%flakyEvery == 0
}

// listIPs filters and orders the IPs.
func (s *store) listIPs(search, state, ordering string) []*ip {
	var out []*ip
	search = strings.ToLower(search)
	for _, id := range s.order {
		rec := s.ips[id]
		if state != "" && !strings.EqualFold(rec.State, state) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(rec.Label), search) &&
			!strings.Contains(strings.ToLower(rec.ObjectID), search) {
			continue
		}
		out = append(out, rec)
	}

	desc := strings.HasPrefix(ordering, "-")
	switch strings.TrimPrefix(ordering, "-") {
	case "label":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	case "state":
		sort.SliceStable(out, func(i, j int) bool { return out[i].State < out[j].State })
	case "create_date", "":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	}
	if desc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// find locates a step or task in any IP.
func (s *store) find(id string) (*ip, *node) {
	for _, rec := range s.ips {
		if n, ok := rec.workflow.byID[id]; ok {
			return rec, n
		}
	}
	return nil, nil
}

func (s *store) eventsFor(ipID string) []*event {
	var out []*event
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].IPID == ipID {
			out = append(out, s.events[i])
		}
	}
	return out
}
