// Package display renders the single status line shown by `etp watch`.
package display

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pablasso/etp/internal/statustree"
)

const (
	maxLabel  = 30
	separator = " │ "
	eraseLine = "\r\033[K"
)

// Phase is where the watch is in its life.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWatching
	PhaseCompleted
	PhaseFailed
	PhaseGone
	PhaseCancelled
)

var phaseNames = [...]string{"Idle", "Watching", "Completed", "Failed", "Gone", "Cancelled"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "Unknown"
	}
	return phaseNames[p]
}

// State is what the status line shows.
type State struct {
	Label       string
	Summary     statustree.Summary
	Phase       Phase
	Started     time.Time
	LastRefresh time.Time
	// LastError is cleared by the next successful refresh.
	LastError string
}

// StatusLine keeps one line of the terminal updated with the state of a
// watch. Messages printed with Printf scroll above it.
type StatusLine struct {
	mu    sync.Mutex
	out   io.Writer
	state State
	drawn string
	now   func() time.Time

	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates a status line writing to out.
func New(out io.Writer) *StatusLine {
	return &StatusLine{out: out, now: time.Now}
}

// Start redraws the line every second until Stop is called or ctx ends.
// Calling Start on a running line does nothing.
func (l *StatusLine) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.stopped = make(chan struct{})
	l.state.Started = l.now()

	go func(stopped chan struct{}) {
		defer close(stopped)
		tick := time.NewTicker(time.Second)
		defer tick.Stop()
		l.redraw()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				l.redraw()
			}
		}
	}(l.stopped)
}

// Stop ends the redraw loop, waits for it and erases the line.
func (l *StatusLine) Stop() {
	l.mu.Lock()
	cancel, stopped := l.cancel, l.stopped
	l.cancel, l.stopped = nil, nil
	l.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-stopped

	l.mu.Lock()
	defer l.mu.Unlock()
	l.drawn = ""
	fmt.Fprint(l.out, eraseLine)
}

// SetLabel sets the name of the watched IP.
func (l *StatusLine) SetLabel(label string) {
	l.update(func(s *State) { s.Label = label })
}

// SetPhase overrides the phase.
func (l *StatusLine) SetPhase(p Phase) {
	l.update(func(s *State) { s.Phase = p })
}

// Tree records a refreshed tree. The phase becomes completed or failed
// once every top-level node has finished.
func (l *StatusLine) Tree(tree []*statustree.Node, at time.Time) {
	sum := statustree.Summarize(tree)
	l.update(func(s *State) {
		s.Summary = sum
		s.LastRefresh = at
		s.LastError = ""
		s.Phase = PhaseWatching
		if sum.Done() {
			s.Phase = PhaseCompleted
			if sum.Failed > 0 {
				s.Phase = PhaseFailed
			}
		}
	})
}

// Error records a failed refresh.
func (l *StatusLine) Error(err error) {
	l.update(func(s *State) { s.LastError = err.Error() })
}

// State returns a copy of what the line shows.
func (l *StatusLine) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Printf writes a message above the status line.
func (l *StatusLine) Printf(format string, args ...any) {
	l.mu.Lock()
	fmt.Fprint(l.out, eraseLine)
	fmt.Fprintf(l.out, format+"\n", args...)
	l.drawn = ""
	running := l.cancel != nil
	l.mu.Unlock()

	if running {
		l.redraw()
	}
}

func (l *StatusLine) update(fn func(*State)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.state)
}

func (l *StatusLine) redraw() {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := Format(l.state, l.now())
	if line == l.drawn {
		return
	}
	l.drawn = line
	fmt.Fprint(l.out, eraseLine+line)
}

// Format renders s as it looks at now. A state with nothing to show
// renders empty.
func Format(s State, now time.Time) string {
	if s.Label == "" && s.Summary.Total == 0 {
		return ""
	}

	label := s.Label
	if len(label) > maxLabel {
		label = label[:maxLabel-3] + "..."
	}

	refreshed := "never"
	if !s.LastRefresh.IsZero() {
		refreshed = humanize.RelTime(s.LastRefresh, now, "ago", "from now")
	}

	var elapsed time.Duration
	if !s.Started.IsZero() {
		elapsed = now.Sub(s.Started)
	}

	parts := []string{
		label,
		fmt.Sprintf("%d/%d done", s.Summary.Succeeded+s.Summary.Failed, s.Summary.Total),
		fmt.Sprintf("%d failed", s.Summary.Failed),
		fmt.Sprintf("%d%%", s.Summary.Progress),
		"⏱ " + clock(elapsed),
		"refreshed " + refreshed,
		s.Phase.String(),
	}
	if s.LastError != "" {
		parts = append(parts, "error: "+s.LastError)
	}
	return strings.Join(parts, separator)
}

// clock prints d as mm:ss, or hh:mm:ss past the hour.
func clock(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, secs/60%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
