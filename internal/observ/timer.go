// Package observ measures the passes of a generation run.
package observ

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase is one measured pass.
type Phase struct {
	Name   string
	Start  time.Time
	Dur    time.Duration
	Note   string
	Failed bool
}

// Timer records phases in the order they begin. It is safe for concurrent
// use, so a cached run and its writer can share one.
type Timer struct {
	mu     sync.Mutex
	phases []Phase
}

func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 8)} }

// Begin starts a phase and returns its handle for End.
func (t *Timer) Begin(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End closes the phase idx. Unknown handles are ignored.
func (t *Timer) End(idx int, note string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Note = note
}

// Track runs fn as a phase. A failing fn marks the phase failed with the
// error as its note; the error is returned unchanged.
func (t *Timer) Track(name string, fn func() (string, error)) error {
	idx := t.Begin(name)
	note, err := fn()
	if err != nil {
		note = err.Error()
	}
	t.End(idx, note)
	if err != nil {
		t.mu.Lock()
		t.phases[idx].Failed = true
		t.mu.Unlock()
	}
	return err
}

// Phases returns a copy of the recorded phases.
func (t *Timer) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Phase(nil), t.phases...)
}

// PhaseReport is the serializable form of a phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Share      float64 `json:"share"`
	Note       string  `json:"note,omitempty"`
	Failed     bool    `json:"failed,omitempty"`
}

// Report lists the phases with their share of the total. The total is the
// sum of the phase durations.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

func (t *Timer) Report() Report {
	phases := t.Phases()
	if len(phases) == 0 {
		return Report{}
	}
	var total time.Duration
	for _, p := range phases {
		total += p.Dur
	}
	r := Report{TotalMS: millis(total), Phases: make([]PhaseReport, len(phases))}
	for i, p := range phases {
		share := 0.0
		if total > 0 {
			share = float64(p.Dur) / float64(total)
		}
		r.Phases[i] = PhaseReport{
			Name:       p.Name,
			DurationMS: millis(p.Dur),
			Share:      share,
			Note:       p.Note,
			Failed:     p.Failed,
		}
	}
	return r
}

// Summary renders the report as an aligned table.
func (t *Timer) Summary() string {
	r := t.Report()
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, p := range r.Phases {
		fmt.Fprintf(&sb, "  %-12s %9.2f ms %5.1f%%", p.Name, p.DurationMS, 100*p.Share)
		switch {
		case p.Failed:
			sb.WriteString("  failed: " + p.Note)
		case p.Note != "":
			sb.WriteString("  " + p.Note)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  %-12s %9.2f ms\n", "total", r.TotalMS)
	return sb.String()
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
