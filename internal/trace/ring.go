package trace

import (
	"io"
	"os"
	"sync"
)

// Ring keeps the most recent events in memory. When it has a writer, Close
// writes them out, which leaves the last steps before a stall or crash.
type Ring struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool
	level  Level
	w      io.Writer
	format Format
}

// NewRing returns a ring of capacity events. w may be nil.
func NewRing(capacity int, level Level, w io.Writer, format Format) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &Ring{events: make([]Event, capacity), level: level, w: w, format: format}
}

func (t *Ring) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !t.level.ShouldEmit(ev.Scope) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	stored := *ev
	stored.Seq = nextSeq()
	t.events[t.next] = stored
	t.next++
	if t.next == len(t.events) {
		t.next = 0
		t.full = true
	}
}

// Events returns the stored events, oldest first.
func (t *Ring) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full {
		return append([]Event(nil), t.events[:t.next]...)
	}
	out := make([]Event, 0, len(t.events))
	out = append(out, t.events[t.next:]...)
	return append(out, t.events[:t.next]...)
}

// WriteTo writes the stored events to w.
func (t *Ring) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, ev := range t.Events() {
		m, err := w.Write(FormatEvent(&ev, t.format))
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (t *Ring) Flush() error { return nil }

// Close writes the stored events to the ring's writer, if any.
func (t *Ring) Close() error {
	if t.w == nil {
		return nil
	}
	if _, err := t.WriteTo(t.w); err != nil {
		return err
	}
	if t.w == os.Stderr || t.w == os.Stdout {
		return nil
	}
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *Ring) Level() Level { return t.level }
