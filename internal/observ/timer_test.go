package observ

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestTimerTrack(t *testing.T) {
	tm := NewTimer()
	if err := tm.Track("prepare", func() (string, error) { return "12 types", nil }); err != nil {
		t.Fatalf("Track: %v", err)
	}
	boom := errors.New("boom")
	if err := tm.Track("build", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("Track must return the phase error, got %v", err)
	}
	r := tm.Report()
	if len(r.Phases) != 2 || r.Phases[0].Note != "12 types" || !r.Phases[1].Failed || r.Phases[1].Note != "boom" {
		t.Fatalf("unexpected report %+v", r)
	}
	s := tm.Summary()
	if !strings.Contains(s, "prepare") || !strings.Contains(s, "failed: boom") || !strings.Contains(s, "total") {
		t.Fatalf("unexpected summary %q", s)
	}
}

func TestReportSharesAddUp(t *testing.T) {
	tm := NewTimer()
	for _, name := range []string{"load", "prepare", "order"} {
		tm.End(tm.Begin(name), "")
	}
	var sum float64
	r := tm.Report()
	for _, p := range r.Phases {
		sum += p.Share
	}
	if r.TotalMS > 0 && (sum < 0.999 || sum > 1.001) {
		t.Fatalf("shares sum to %f", sum)
	}
}

func TestTimerConcurrentUse(t *testing.T) {
	tm := NewTimer()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tm.Track("write", func() (string, error) { return "", nil })
		}()
	}
	wg.Wait()
	if got := len(tm.Phases()); got != 8 {
		t.Fatalf("recorded %d phases, want 8", got)
	}
}

func TestEmptyTimer(t *testing.T) {
	if r := NewTimer().Report(); len(r.Phases) != 0 || r.TotalMS != 0 {
		t.Fatalf("empty timer reports nothing, got %+v", r)
	}
	tm := NewTimer()
	tm.End(5, "ignored")
}
