package demo

import (
	"fmt"
	"time"
)

const (
	flowStep = "step"
	flowTask = "task"

	statusPending = "PENDING"
	statusStarted = "STARTED"
	statusSuccess = "SUCCESS"
	statusFailure = "FAILURE"

	// progressPerTick is how far a running task advances per tick.
	progressPerTick = 50
)

// node is a step or task in a simulated workflow.
type node struct {
	ID          string
	Name        string
	FlowType    string
	User        string
	Status      string
	Progress    int
	Undone      bool
	TimeStarted *time.Time
	TimeDone    *time.Time
	Exception   string
	Traceback   string
	Children    []*node
	parent      *node
}

func (n *node) isStep() bool { return n.FlowType == flowStep }

func (n *node) finished() bool {
	return n.Status == statusSuccess || n.Status == statusFailure
}

// workflow is the status tree of one IP.
type workflow struct {
	steps  []*node
	byID   map[string]*node
	leaves []*node
	// failed records leaves whose injected failure already happened.
	failed map[string]bool
	halted bool
}

type stepLayout struct {
	name     string
	tasks    []string
	children []stepLayout
}

// defaultLayout is the workflow every demo IP runs.
var defaultLayout = []stepLayout{
	{name: "Prepare IP", tasks: []string{"Create physical model", "Generate content metadata"}},
	{name: "Create SIP", children: []stepLayout{
		{name: "Validate files", tasks: []string{"Validate checksums", "Validate file formats", "Validate XML"}},
		{name: "Convert files", tasks: convertTasks(12)},
		{name: "Package", tasks: []string{"Create TAR", "Generate METS", "Generate premis"}},
	}},
	{name: "Submit SIP", tasks: []string{"Transfer SIP", "Send notification email"}},
}

func convertTasks(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Convert document %02d to PDF/A", i+1)
	}
	return out
}

func newWorkflow(prefix, user string, layout []stepLayout) *workflow {
	w := &workflow{byID: map[string]*node{}, failed: map[string]bool{}}
	seq := 0
	nextID := func() string {
		seq++
		return fmt.Sprintf("%s-%03d", prefix, seq)
	}

	var build func(layouts []stepLayout, parent *node) []*node
	build = func(layouts []stepLayout, parent *node) []*node {
		var out []*node
		for _, s := range layouts {
			step := &node{ID: nextID(), Name: s.name, FlowType: flowStep, User: user, Status: statusPending, parent: parent}
			w.byID[step.ID] = step
			step.Children = build(s.children, step)
			for _, t := range s.tasks {
				task := &node{ID: nextID(), Name: t, FlowType: flowTask, User: user, Status: statusPending, parent: step}
				w.byID[task.ID] = task
				step.Children = append(step.Children, task)
				w.leaves = append(w.leaves, task)
			}
			out = append(out, step)
		}
		return out
	}
	w.steps = build(layout, nil)
	return w
}

// complete marks every task finished, for IPs whose workflow already ran.
func (w *workflow) complete(at time.Time) {
	for _, l := range w.leaves {
		started := at
		l.Status = statusSuccess
		l.Progress = 100
		l.TimeStarted = &started
		l.TimeDone = &started
	}
	w.rollup()
}

// advance moves the first unfinished task forward. In ScenarioFail the
// leaf at failTarget fails once and halts the workflow.
func (w *workflow) advance(now time.Time, scenario Scenario) {
	if w.halted {
		return
	}
	for i, l := range w.leaves {
		if l.finished() || l.Undone {
			continue
		}
		if l.TimeStarted == nil {
			t := now
			l.TimeStarted = &t
			l.Status = statusStarted
		}
		if scenario == ScenarioFail && i+1 == failTarget && !w.failed[l.ID] {
			w.failed[l.ID] = true
			done := now
			l.Status = statusFailure
			l.TimeDone = &done
			l.Exception = "ValueError: demo injected failure"
			l.Traceback = "Traceback (most recent call last):\n  File \"tasks.py\", line 42, in run\nValueError: demo injected failure"
			w.halted = true
			break
		}
		l.Progress += progressPerTick
		if l.Progress >= 100 {
			done := now
			l.Progress = 100
			l.Status = statusSuccess
			l.TimeDone = &done
		}
		break
	}
	w.rollup()
}

// rollup derives step status and progress from their children.
func (w *workflow) rollup() {
	var visit func(n *node)
	visit = func(n *node) {
		if !n.isStep() || len(n.Children) == 0 {
			return
		}
		sum, succeeded, failed, started := 0, 0, 0, 0
		var first, last *time.Time
		for _, c := range n.Children {
			visit(c)
			sum += c.Progress
			switch c.Status {
			case statusSuccess:
				succeeded++
			case statusFailure:
				failed++
			}
			if c.TimeStarted != nil {
				started++
				if first == nil || c.TimeStarted.Before(*first) {
					first = c.TimeStarted
				}
			}
			if c.TimeDone != nil && (last == nil || c.TimeDone.After(*last)) {
				last = c.TimeDone
			}
		}
		n.Progress = sum / len(n.Children)
		n.TimeStarted = first
		n.TimeDone = nil
		switch {
		case failed > 0:
			n.Status = statusFailure
		case succeeded == len(n.Children):
			n.Status = statusSuccess
			n.TimeDone = last
		case started > 0:
			n.Status = statusStarted
		default:
			n.Status = statusPending
		}
	}
	for _, s := range w.steps {
		visit(s)
	}
}

// undo marks n and its descendants undone and resets their progress.
func (w *workflow) undo(n *node) error {
	if n.Status == statusStarted && !n.isStep() {
		return fmt.Errorf("cannot undo a running task")
	}
	var visit func(*node)
	visit = func(m *node) {
		m.Undone = true
		m.Progress = 0
		for _, c := range m.Children {
			visit(c)
		}
	}
	visit(n)
	w.rollup()
	return nil
}

// retry restarts an undone or failed node and its descendants.
func (w *workflow) retry(n *node) error {
	if !n.Undone && n.Status != statusFailure {
		return fmt.Errorf("only undone or failed nodes can be retried")
	}
	var visit func(*node)
	visit = func(m *node) {
		m.Undone = false
		m.Progress = 0
		m.Status = statusPending
		m.TimeStarted = nil
		m.TimeDone = nil
		m.Exception = ""
		m.Traceback = ""
		for _, c := range m.Children {
			visit(c)
		}
	}
	visit(n)
	w.halted = false
	w.rollup()
	return nil
}

// summary returns the overall status and progress of the workflow.
func (w *workflow) summary() (string, int) {
	if len(w.steps) == 0 {
		return statusSuccess, 100
	}
	sum, succeeded := 0, 0
	status := statusPending
	for _, s := range w.steps {
		sum += s.Progress
		switch s.Status {
		case statusFailure:
			status = statusFailure
		case statusSuccess:
			succeeded++
		case statusStarted:
			if status != statusFailure {
				status = statusStarted
			}
		}
	}
	if succeeded == len(w.steps) {
		status = statusSuccess
	} else if status == statusPending && succeeded > 0 {
		status = statusStarted
	}
	return status, sum / len(w.steps)
}

// done reports whether every task finished successfully.
func (w *workflow) done() bool {
	for _, l := range w.leaves {
		if l.Status != statusSuccess || l.Undone {
			return false
		}
	}
	return true
}
