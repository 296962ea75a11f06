package demo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const maxPageSize = 1000

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func pageParams(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if size < 1 {
		size = 10
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// paginate writes one page of items in the {count, next, previous, results}
// shape. Pages past the end are a 404, as the real API does.
func paginate[T any](w http.ResponseWriter, r *http.Request, items []T) {
	page, size := pageParams(r)
	start := (page - 1) * size
	if start > 0 && start >= len(items) {
		writeError(w, http.StatusNotFound, "Invalid page.")
		return
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}

	link := func(p int) any {
		u := *r.URL
		q := u.Query()
		q.Set("page", strconv.Itoa(p))
		u.RawQuery = q.Encode()
		return baseURL(r) + u.RequestURI()
	}
	var next, prev any
	if end < len(items) {
		next = link(page + 1)
	}
	if page > 1 {
		prev = link(page - 1)
	}

	results := items[start:end]
	if results == nil {
		results = []T{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(items),
		"next":     next,
		"previous": prev,
		"results":  results,
	})
}

func (s *Server) ipJSON(r *http.Request, rec *ip) map[string]any {
	base := baseURL(r)
	status, progress := rec.workflow.summary()
	locks := []map[string]any{}
	for _, l := range s.store.locks {
		if l.IPID != rec.ID {
			continue
		}
		locks = append(locks, map[string]any{
			"url":                  base + "/api/locks/" + l.ID + "/",
			"information_package":  base + "/api/information-packages/" + l.IPID + "/",
			"submission_agreement": base + "/api/submission-agreements/" + l.SAID + "/",
			"profile":              base + "/api/profiles/" + l.ProfileID + "/",
		})
	}
	return map[string]any{
		"id":                      rec.ID,
		"label":                   rec.Label,
		"object_identifier_value": rec.ObjectID,
		"state":                   rec.State,
		"responsible":             rec.Responsible,
		"create_date":             rec.Created.UTC().Format(time.RFC3339),
		"step_state":              status,
		"status":                  progress,
		"submission_agreement":    rec.SA,
		"url":                     base + "/api/information-packages/" + rec.ID + "/",
		"locks":                   locks,
	}
}

func nodeJSON(r *http.Request, n *node, detail bool) map[string]any {
	kind := "tasks"
	if n.isStep() {
		kind = "steps"
	}
	out := map[string]any{
		"id":           n.ID,
		"name":         n.Name,
		"flow_type":    n.FlowType,
		"user":         n.User,
		"time_started": timeOrNil(n.TimeStarted),
		"status":       n.Status,
		"progress":     n.Progress,
		"undone":       n.Undone,
		"url":          baseURL(r) + "/api/" + kind + "/" + n.ID + "/",
		"child_count":  len(n.Children),
	}
	if detail {
		out["time_done"] = timeOrNil(n.TimeDone)
		out["exception"] = n.Exception
		out["traceback"] = n.Traceback
	}
	return out
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (s *Server) handleListIPs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	recs := s.store.listIPs(q.Get("search"), q.Get("state"), q.Get("ordering"))
	items := make([]map[string]any, len(recs))
	for i, rec := range recs {
		items[i] = s.ipJSON(r, rec)
	}
	paginate(w, r, items)
}

func (s *Server) lookupIP(w http.ResponseWriter, r *http.Request) *ip {
	rec, ok := s.store.ips[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Not found.")
		return nil
	}
	return rec
}

func (s *Server) handleGetIP(w http.ResponseWriter, r *http.Request) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if rec := s.lookupIP(w, r); rec != nil {
		writeJSON(w, http.StatusOK, s.ipJSON(r, rec))
	}
}

func (s *Server) handleDeleteIP(w http.ResponseWriter, r *http.Request) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if !s.store.removeIP(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	rec := s.lookupIP(w, r)
	if rec == nil {
		return
	}
	if s.store.flaky() {
		writeError(w, http.StatusInternalServerError, "demo injected server error")
		return
	}
	out := make([]map[string]any, len(rec.workflow.steps))
	for i, n := range rec.workflow.steps {
		out[i] = nodeJSON(r, n, false)
	}
	writeJSON(w, http.StatusOK, out)
}

// ipTransitions maps an action to the states it is allowed from and the
// state it leads to.
var ipTransitions = map[string]struct {
	from  []string
	to    string
	event int
}{
	"prepare":      {from: []string{"Preparing"}, to: "Prepared", event: EventPrepared},
	"set-uploaded": {from: []string{"Prepared", "Uploading"}, to: "Uploaded", event: EventUploaded},
	"create":       {from: []string{"Uploaded", "Creating"}, to: "Created", event: EventCreated},
	"submit":       {from: []string{"Created"}, to: "Submitted", event: EventSubmitted},
}

func (s *Server) handleIPAction(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	tr, ok := ipTransitions[action]
	if !ok {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}

	var body map[string]any
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Malformed request body.")
			return
		}
	}
	if (action == "create" || action == "submit") && body["validators"] == nil {
		writeError(w, http.StatusBadRequest, "validators is required")
		return
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	rec := s.lookupIP(w, r)
	if rec == nil {
		return
	}
	allowed := false
	for _, st := range tr.from {
		if rec.State == st {
			allowed = true
		}
	}
	if !allowed {
		writeError(w, http.StatusConflict, fmt.Sprintf("Cannot %s information package in state %s", action, rec.State))
		return
	}
	rec.State = tr.to
	detail := fmt.Sprintf("%s %s", eventTypeNames[tr.event], rec.ID)
	if subject, _ := body["subject"].(string); subject != "" {
		detail += ": " + subject
	}
	s.store.addEvent(rec.ID, tr.event, detail, rec.Responsible)
	writeJSON(w, http.StatusOK, map[string]string{"detail": detail})
}

func (s *Server) handleChangeProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type       string `json:"type"`
		NewProfile string `json:"new_profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Type == "" || body.NewProfile == "" {
		writeError(w, http.StatusBadRequest, "type and new_profile are required")
		return
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	rec := s.lookupIP(w, r)
	if rec == nil {
		return
	}
	if _, ok := s.store.profiles[body.NewProfile]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown profile "+body.NewProfile)
		return
	}
	sa, ok := s.store.sas[rec.SA]
	if !ok {
		writeError(w, http.StatusBadRequest, "Information package has no submission agreement")
		return
	}
	current, _ := sa["profile_"+body.Type].(string)
	for _, l := range s.store.locks {
		if l.IPID == rec.ID && l.ProfileID == current {
			writeError(w, http.StatusConflict, "Profile is locked")
			return
		}
	}
	sa["profile_"+body.Type] = body.NewProfile
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Updated " + body.Type})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	rec := s.lookupIP(w, r)
	if rec == nil {
		return
	}
	evs := s.store.eventsFor(rec.ID)
	items := make([]map[string]any, len(evs))
	for i, ev := range evs {
		items[i] = eventJSON(ev)
	}
	paginate(w, r, items)
}

func eventJSON(ev *event) map[string]any {
	return map[string]any{
		"id":                  ev.ID,
		"event_type":          ev.Type,
		"event_type_name":     eventTypeNames[ev.Type],
		"event_detail":        ev.Detail,
		"outcome":             ev.Outcome,
		"agent":               ev.Agent,
		"event_time":          ev.Time.UTC().Format(time.RFC3339Nano),
		"information_package": ev.IPID,
	}
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IP     string `json:"information_package"`
		Type   int    `json:"event_type"`
		Detail string `json:"event_detail"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IP == "" || body.Type == 0 {
		writeError(w, http.StatusBadRequest, "information_package and event_type are required")
		return
	}
	agent, _, _ := r.BasicAuth()
	if agent == "" {
		agent = "admin"
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if _, ok := s.store.ips[body.IP]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown information package "+body.IP)
		return
	}
	ev := s.store.addEvent(body.IP, body.Type, body.Detail, agent)
	writeJSON(w, http.StatusCreated, eventJSON(ev))
}

func (s *Server) lookupNode(w http.ResponseWriter, r *http.Request) (*ip, *node) {
	rec, n := s.store.find(chi.URLParam(r, "id"))
	if n == nil {
		writeError(w, http.StatusNotFound, "Not found.")
		return nil, nil
	}
	wantStep := strings.Contains(r.URL.Path, "/api/steps/")
	if wantStep != n.isStep() {
		writeError(w, http.StatusNotFound, "Not found.")
		return nil, nil
	}
	return rec, n
}

func (s *Server) handleNodeDetail(w http.ResponseWriter, r *http.Request) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if _, n := s.lookupNode(w, r); n != nil {
		writeJSON(w, http.StatusOK, nodeJSON(r, n, true))
	}
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	_, n := s.lookupNode(w, r)
	if n == nil {
		return
	}
	items := make([]map[string]any, len(n.Children))
	for i, c := range n.Children {
		items[i] = nodeJSON(r, c, false)
	}
	paginate(w, r, items)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	rec, n := s.lookupNode(w, r)
	if n == nil {
		return
	}
	if err := rec.workflow.undo(n); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.store.addEvent(rec.ID, EventUndo, "Undo "+n.Name, rec.Responsible)
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Undoing " + n.Name})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	rec, n := s.lookupNode(w, r)
	if n == nil {
		return
	}
	if err := rec.workflow.retry(n); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.store.addEvent(rec.ID, EventRetry, "Retry "+n.Name, rec.Responsible)
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Retrying " + n.Name})
}

func (s *Server) handleListSAs(w http.ResponseWriter, r *http.Request) {
	publishedOnly := r.URL.Query().Get("published") == "true"
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	out := []map[string]any{}
	for _, id := range s.store.saOrder {
		sa := s.store.sas[id]
		if publishedOnly && sa["published"] != true {
			continue
		}
		out = append(out, withURL(r, sa, "submission-agreements"))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSA(w http.ResponseWriter, r *http.Request) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	sa, ok := s.store.sas[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, withURL(r, sa, "submission-agreements"))
}

func (s *Server) handleCreateSA(w http.ResponseWriter, r *http.Request) {
	var sa map[string]any
	if err := json.NewDecoder(r.Body).Decode(&sa); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	id, _ := sa["id"].(string)
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if _, exists := s.store.sas[id]; exists {
		writeError(w, http.StatusBadRequest, "submission agreement with this id already exists.")
		return
	}
	delete(sa, "url")
	s.store.addSA(sa)
	writeJSON(w, http.StatusCreated, withURL(r, sa, "submission-agreements"))
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	p, ok := s.store.profiles[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, withURL(r, p, "profiles"))
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var p map[string]any
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	id, _ := p["id"].(string)
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if _, exists := s.store.profiles[id]; exists {
		writeError(w, http.StatusBadRequest, "profile with this id already exists.")
		return
	}
	delete(p, "url")
	s.store.profiles[id] = p
	writeJSON(w, http.StatusCreated, withURL(r, p, "profiles"))
}

func (s *Server) handleDeleteLock(w http.ResponseWriter, r *http.Request) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	id := chi.URLParam(r, "id")
	if _, ok := s.store.locks[id]; !ok {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	delete(s.store.locks, id)
	w.WriteHeader(http.StatusNoContent)
}

// withURL copies rec and adds its absolute url.
func withURL(r *http.Request, rec map[string]any, collection string) map[string]any {
	out := make(map[string]any, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	id, _ := rec["id"].(string)
	out["url"] = baseURL(r) + "/api/" + collection + "/" + url.PathEscape(id) + "/"
	return out
}
