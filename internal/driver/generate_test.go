package driver_test

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"nativebind/internal/diag"
	"nativebind/internal/driver"
	"nativebind/internal/layout"
	"nativebind/internal/metadata"
	"nativebind/internal/testkit"
	"nativebind/internal/types"
)

// newSnapshot seeds size entries for the built-in base types.
func newSnapshot() *testkit.Snap {
	b := testkit.NewSnapshot()
	b.Size(b.Object, 16, 8)
	b.Size(b.ValueType, 16, 8)
	b.Size(b.EnumBase, 16, 8)
	b.Size(b.String, 16, 8)
	return b
}

func generate(t *testing.T, b *testkit.Snap, req driver.Request) *driver.Result {
	t.Helper()
	req.Snapshot = b.S
	if req.Jobs == 0 {
		req.Jobs = 4
	}
	res, err := driver.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return res
}

func mustFind(t *testing.T, res *driver.Result, name string) *driver.TypeResult {
	t.Helper()
	r, ok := res.Find(name)
	if !ok {
		t.Fatalf("%s is missing from the result", name)
	}
	return r
}

func hasDiag(res *driver.Result, code diag.Code, typ string) bool {
	for _, d := range res.Diagnostics.Items() {
		if d.Code == code && d.Subject.Type == typ {
			return true
		}
	}
	return false
}

func batchOf(res *driver.Result, id types.KeyID) int {
	for i, batch := range res.Order {
		if slices.Contains(batch, id) {
			return i
		}
	}
	return -1
}

func TestGenerateFailsEmbeddersTransitively(t *testing.T) {
	b := newSnapshot()
	inner := b.Struct("Game", "Inner")
	b.Field(inner, "x", b.Prim(metadata.TagI4))
	outer := b.Struct("Game", "Outer")
	b.Field(outer, "in", b.Ref(inner))
	b.Size(outer, 16+4, 4, 16)
	holder := b.Class("Game", "Holder")
	b.Field(holder, "o", b.Ref(outer))
	b.Size(holder, 16+4, 8, 16)
	fine := b.Struct("Game", "Fine")
	b.Field(fine, "y", b.Prim(metadata.TagI4))
	b.Size(fine, 16+4, 4, 16)

	res := generate(t, b, driver.Request{})

	in := mustFind(t, res, "Game.Inner")
	if in.Outcome != driver.OutcomeFailed || !errors.Is(in.Err, &layout.LayoutError{Kind: layout.ErrMissingSizeInfo}) {
		t.Fatalf("Inner: outcome %s, err %v", in.Outcome, in.Err)
	}
	for _, name := range []string{"Game.Outer", "Game.Holder"} {
		r := mustFind(t, res, name)
		if r.Outcome != driver.OutcomeFailed || !errors.Is(r.Err, driver.ErrDependencyFailed) {
			t.Fatalf("%s: outcome %s, err %v", name, r.Outcome, r.Err)
		}
		var te *driver.TypeError
		if !errors.As(r.Err, &te) || te.Name != name {
			t.Fatalf("%s: expected a TypeError naming the type, got %v", name, r.Err)
		}
		if !hasDiag(res, diag.LayoutDependencyFailed, name) {
			t.Fatalf("%s: dependency failure not reported", name)
		}
	}
	if r := mustFind(t, res, "Game.Fine"); r.Outcome != driver.OutcomeGenerated || r.Model == nil {
		t.Fatalf("Fine: outcome %s, err %v", r.Outcome, r.Err)
	}

	bi, bo, bh := batchOf(res, in.ID), batchOf(res, mustFind(t, res, "Game.Outer").ID), batchOf(res, mustFind(t, res, "Game.Holder").ID)
	if bi >= bo || bo >= bh {
		t.Fatalf("embedded types must come first, got batches %d, %d, %d", bi, bo, bh)
	}
	if _, _, failed := res.Counts(); failed != 3 {
		t.Fatalf("failed = %d, want 3", failed)
	}
}

func TestGenerateSeparatesCyclesFromBlockedTypes(t *testing.T) {
	b := newSnapshot()
	a := b.Struct("Game", "A")
	c := b.Struct("Game", "B")
	user := b.Struct("Game", "User")
	self := b.Struct("Game", "Self")
	b.Field(a, "b", b.Ref(c))
	b.Field(c, "a", b.Ref(a))
	b.Field(user, "a", b.Ref(a))
	b.Field(self, "s", b.Ref(self))
	for _, d := range []metadata.TypeDefIndex{a, c, user, self} {
		b.Size(d, 16+4, 4, 16)
	}

	res := generate(t, b, driver.Request{})

	for _, name := range []string{"Game.A", "Game.B", "Game.Self"} {
		r := mustFind(t, res, name)
		if !errors.Is(r.Err, &layout.LayoutError{Kind: layout.ErrRecursiveValueType}) {
			t.Fatalf("%s: expected a recursive value type, got %v", name, r.Err)
		}
		if !hasDiag(res, diag.LayoutRecursiveValue, name) {
			t.Fatalf("%s: cycle not reported", name)
		}
		if batchOf(res, r.ID) != -1 {
			t.Fatalf("%s: cyclic types are never scheduled", name)
		}
	}
	u := mustFind(t, res, "Game.User")
	if !errors.Is(u.Err, driver.ErrDependencyFailed) || errors.Is(u.Err, &layout.LayoutError{Kind: layout.ErrRecursiveValueType}) {
		t.Fatalf("User only embeds the cycle, got %v", u.Err)
	}
}

func TestGenerateExcludesDeniedAndOrphanTypes(t *testing.T) {
	b := newSnapshot()
	secret := b.Class("Game", "Secret")
	b.Size(secret, 16, 8)
	b.Orphan("Game", "Loose")

	res := generate(t, b, driver.Request{Deny: []string{"Game.Secret", "Game.Missing"}})

	for _, name := range []string{"Game.Secret", "Game.Loose"} {
		r := mustFind(t, res, name)
		if r.Outcome != driver.OutcomeExcluded || r.Model != nil {
			t.Fatalf("%s: outcome %s", name, r.Outcome)
		}
		if !hasDiag(res, diag.BindTypeExcluded, name) {
			t.Fatalf("%s: exclusion not reported", name)
		}
	}
	if !slices.Equal(res.UnmatchedDeny, []string{"Game.Missing"}) {
		t.Fatalf("UnmatchedDeny = %v", res.UnmatchedDeny)
	}
	if !hasDiag(res, diag.BindInfo, "Game.Missing") {
		t.Fatalf("the unmatched deny entry must be reported")
	}
	if len(res.Failed()) != 0 {
		t.Fatalf("unexpected failures: %v", res.Failed()[0].Err)
	}
}

func sharedSnapshot() *testkit.Snap {
	b := newSnapshot()
	list := b.Class("Game", "List`1")
	tp := b.Generic(list, "T")
	b.Field(list, "head", tp[0])
	foo := b.Class("Game", "Foo")
	bar := b.Class("Game", "Bar")
	b.Size(foo, 16, 8)
	b.Size(bar, 16, 8)
	b.Inst(list, b.Ref(foo))
	b.Inst(list, b.Ref(bar))
	b.Inst(list, b.Ref(foo))
	return b
}

func TestGenerateSharesInstancesWithTheLowestKey(t *testing.T) {
	res := generate(t, sharedSnapshot(), driver.Request{IncludeTemplates: true})

	var inst []*driver.TypeResult
	for i := range res.Types {
		if res.Types[i].Key.IsInstance() {
			inst = append(inst, &res.Types[i])
		}
	}
	if len(inst) != 2 {
		t.Fatalf("duplicate classes share one key, got %d instances", len(inst))
	}
	owner, shared := inst[0], inst[1]
	if owner.Model == nil || shared.Model == nil {
		t.Fatalf("instances failed: %v / %v", owner.Err, shared.Err)
	}
	if owner.Model.SharedWith != types.NoKeyID || shared.Model.SharedWith != owner.ID {
		t.Fatalf("owner must be %d, got %d / %d", owner.ID, owner.Model.SharedWith, shared.Model.SharedWith)
	}
	if owner.Name != "Game.List`1<Game.Foo*>" {
		t.Fatalf("instance name = %q", owner.Name)
	}
	if _, ok := res.Find("Game.List`1"); !ok {
		t.Fatalf("templates are generated when requested")
	}
}

func TestGenerateSkipsTemplatesByDefault(t *testing.T) {
	res := generate(t, sharedSnapshot(), driver.Request{})
	if _, ok := res.Find("Game.List`1"); ok {
		t.Fatalf("unspecialized definitions are skipped")
	}
	if g, _, f := res.Counts(); g == 0 || f != 0 {
		t.Fatalf("generated %d, failed %d", g, f)
	}
}

func TestGenerateIsDeterministicAcrossJobs(t *testing.T) {
	var outs [][]byte
	for _, jobs := range []int{1, 8} {
		res := generate(t, sharedSnapshot(), driver.Request{Jobs: jobs, IncludeTemplates: true})
		var buf bytes.Buffer
		if err := driver.WriteDump(&buf, driver.NewDump(res, "test"), "json"); err != nil {
			t.Fatalf("WriteDump: %v", err)
		}
		outs = append(outs, buf.Bytes())
	}
	if !bytes.Equal(outs[0], outs[1]) {
		t.Fatalf("output depends on the worker count:\n%s\n---\n%s", outs[0], outs[1])
	}
}

func TestGenerateHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := driver.Generate(ctx, driver.Request{Snapshot: newSnapshot().S})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestGenerateReportsProgress(t *testing.T) {
	b := newSnapshot()
	ch := make(chan driver.Event, 64)
	res := generate(t, b, driver.Request{Progress: driver.ChannelSink{Ch: ch}})
	close(ch)

	done := 0
	for ev := range ch {
		if ev.Status == driver.StatusDone {
			done++
		}
	}
	if g, _, _ := res.Counts(); done != g {
		t.Fatalf("done events = %d, generated = %d", done, g)
	}
}

func TestGenerateRejectsMalformedSnapshot(t *testing.T) {
	b := newSnapshot()
	d := b.Class("Game", "Broken")
	b.S.TypeDefs[d].Parent = metadata.TypeIndex(9999)
	_, err := driver.Generate(context.Background(), driver.Request{Snapshot: b.S})
	if !errors.Is(err, metadata.ErrMalformed) {
		t.Fatalf("expected a malformed snapshot error, got %v", err)
	}
}

func TestGenerateReportsPhases(t *testing.T) {
	b := newSnapshot()
	c := b.Class("Game", "Mob")
	b.Size(c, 16, 8)

	var got []driver.PhaseEvent
	generate(t, b, driver.Request{Phases: func(ev driver.PhaseEvent) { got = append(got, ev) }})
	want := []driver.Stage{driver.StagePrepare, driver.StageOrder, driver.StageBuild}
	if len(got) != 2*len(want) {
		t.Fatalf("expected a start and an end per stage, got %d events", len(got))
	}
	for i, stage := range want {
		start, end := got[2*i], got[2*i+1]
		if start.Stage != stage || start.Status != driver.PhaseStart || start.Note != "" {
			t.Fatalf("event %d: unexpected start %+v", 2*i, start)
		}
		if end.Stage != stage || end.Status != driver.PhaseEnd || end.Note == "" || end.Err != nil {
			t.Fatalf("event %d: unexpected end %+v", 2*i+1, end)
		}
	}

	got = nil
	d := b.Class("Game", "Broken")
	b.S.TypeDefs[d].Parent = metadata.TypeIndex(9999)
	_, err := driver.Generate(context.Background(), driver.Request{Snapshot: b.S, Phases: func(ev driver.PhaseEvent) { got = append(got, ev) }})
	if err == nil || len(got) != 2 {
		t.Fatalf("a failed stage ends the run, got %d events, err %v", len(got), err)
	}
	if end := got[1]; end.Stage != driver.StagePrepare || !errors.Is(end.Err, metadata.ErrMalformed) {
		t.Fatalf("the failing stage carries the error, got %+v", end)
	}
}
