package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLevelScopes(t *testing.T) {
	if LevelPass.ShouldEmit(ScopeBatch) || !LevelPass.ShouldEmit(ScopeDriver) {
		t.Fatalf("pass level records driver and pass spans only")
	}
	if !LevelType.ShouldEmit(ScopeType) {
		t.Fatalf("type level records type spans")
	}
	if LevelOff.ShouldEmit(ScopeDriver) {
		t.Fatalf("off records nothing")
	}
	if l, err := ParseLevel("BATCH"); err != nil || l != LevelBatch {
		t.Fatalf("ParseLevel(BATCH) = %v, %v", l, err)
	}
}

func TestRingKeepsLastEvents(t *testing.T) {
	r := NewRing(2, LevelType, nil, FormatText)
	for _, name := range []string{"a", "b", "c"} {
		Begin(r, ScopeType, name, 0)
	}
	events := r.Events()
	if len(events) != 2 || events[0].Name != "b" || events[1].Name != "c" {
		t.Fatalf("unexpected ring contents %+v", events)
	}
}

func TestRingWritesOnClose(t *testing.T) {
	var buf bytes.Buffer
	r := NewRing(4, LevelPass, &buf, FormatText)
	Begin(r, ScopePass, "order", 0).End("3 batches")
	if buf.Len() != 0 {
		t.Fatalf("ring wrote before Close: %q", buf.String())
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !strings.Contains(buf.String(), "< order (3 batches)") {
		t.Fatalf("unexpected ring output %q", buf.String())
	}
}

func TestStreamWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	s := NewStream(&buf, LevelPass, FormatNDJSON)
	pass := Begin(s, ScopePass, "build", 0)
	typ := pass.Child(ScopeType, "Game.Player")
	typ.End("")
	pass.Attr("types", "3").End("")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected begin and end of the pass only, got %q", buf.String())
	}
	if !strings.Contains(lines[1], `"kind":"end"`) || !strings.Contains(lines[1], `{"key":"types","value":"3"}`) {
		t.Fatalf("unexpected end event %s", lines[1])
	}
}

func TestSpanEndsOnce(t *testing.T) {
	r := NewRing(8, LevelPass, nil, FormatText)
	before := OpenSpans()
	s := Begin(r, ScopePass, "prepare", 0)
	if OpenSpans() != before+1 {
		t.Fatalf("open spans not counted")
	}
	s.End("")
	s.End("")
	if OpenSpans() != before || len(r.Events()) != 2 {
		t.Fatalf("span ended twice: %d open, %d events", OpenSpans(), len(r.Events()))
	}
}

func TestTeeCopiesEvents(t *testing.T) {
	a := NewRing(4, LevelType, nil, FormatText)
	b := NewRing(4, LevelType, nil, FormatText)
	Point(Tee(LevelType, a, b), ScopeDriver, "start", "", 0)
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatalf("each tracer receives the event")
	}
}

func TestContextCarriesTracerAndParent(t *testing.T) {
	r := NewRing(4, LevelPass, nil, FormatText)
	ctx := WithTracer(context.Background(), r)
	if FromContext(ctx) != Tracer(r) {
		t.Fatalf("tracer not carried")
	}
	span := Begin(r, ScopeDriver, "generate", 0)
	if got := ParentID(WithParent(ctx, span)); got != span.ID() {
		t.Fatalf("ParentID = %d, want %d", got, span.ID())
	}
	if FromContext(context.Background()) != Nop {
		t.Fatalf("missing tracer must be Nop")
	}
}
