// Package driver runs generation over a whole snapshot: it interns every
// definition and instantiation, orders value types before their embedders
// and builds the models in parallel batches.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nativebind/internal/builder"
	"nativebind/internal/dag"
	"nativebind/internal/diag"
	"nativebind/internal/layout"
	"nativebind/internal/logx"
	"nativebind/internal/metadata"
	"nativebind/internal/names"
	"nativebind/internal/observ"
	"nativebind/internal/trace"
	"nativebind/internal/types"
)

// pass is the state of one Generate call. results is indexed by dag node
// and every slot is written by exactly one goroutine.
type pass struct {
	req     Request
	env     *names.Env
	builder *builder.Builder
	idx     dag.Index
	results []TypeResult
	bags    []*diag.Bag
	log     *zap.Logger
	tracer  trace.Tracer
}

// Generate builds the model of every definition and registered generic
// class of req.Snapshot. Per-type failures land in the result; the error
// is reserved for malformed input and cancellation.
func Generate(ctx context.Context, req Request) (*Result, error) {
	if req.Snapshot == nil {
		return nil, errors.New("generate: nil snapshot")
	}
	if req.Target.PtrSize == 0 {
		req.Target = layout.AArch64Android()
	}
	timer := req.Timer
	if timer == nil {
		timer = observ.NewTimer()
	}
	tracer := trace.FromContext(ctx)
	root := trace.Begin(tracer, trace.ScopeDriver, "generate", trace.ParentID(ctx))
	defer root.End("")

	p := &pass{req: req, log: logx.Logger(), tracer: tracer}
	start := time.Now()

	var ids []types.KeyID
	err := p.phase(timer, root, StagePrepare, func() (string, error) {
		if err := req.Snapshot.Validate(); err != nil {
			return "", err
		}
		var err error
		ids, err = p.prepare()
		if err != nil {
			return "", err
		}
		return strconv.Itoa(len(ids)) + " types", nil
	})
	if err != nil {
		return nil, err
	}

	var topo *dag.Topo
	var nodes []dag.Node
	err = p.phase(timer, root, StageOrder, func() (string, error) {
		p.idx = dag.BuildIndex(ids)
		nodes = make([]dag.Node, p.idx.Len())
		for n := range nodes {
			id := p.idx.Key(dag.NodeID(n)) //nolint:gosec // bounded by the index length
			nodes[n] = dag.Node{Key: id, Embeds: p.embeds(id)}
		}
		topo = dag.ToposortKahn(dag.BuildGraph(p.idx, nodes))
		return fmt.Sprintf("%d batches", len(topo.Batches)), nil
	})
	if err != nil {
		return nil, err
	}

	p.results = make([]TypeResult, p.idx.Len())
	p.bags = make([]*diag.Bag, p.idx.Len())
	for n := range p.results {
		id := p.idx.Key(dag.NodeID(n)) //nolint:gosec // bounded by the index length
		key := p.env.Keys.MustLookup(id)
		p.results[n] = TypeResult{
			ID:        id,
			Key:       key,
			Name:      p.env.FullName(key),
			Namespace: p.namespace(key),
			Embeds:    nodes[n].Embeds,
		}
		p.bags[n] = diag.NewBag(req.MaxDiagnostics)
		emit(req.Progress, Event{Type: p.results[n].Name, Namespace: p.results[n].Namespace, Stage: StageBuild, Status: StatusQueued})
	}
	p.failCycles(topo)

	err = p.phase(timer, root, StageBuild, func() (string, error) {
		for i, batch := range topo.Batches {
			if err := p.runBatch(ctx, root, i, batch); err != nil {
				return "", err
			}
		}
		gen, exc, fail := p.counts()
		return fmt.Sprintf("%d generated, %d excluded, %d failed", gen, exc, fail), nil
	})
	if err != nil {
		return nil, err
	}

	res := p.collect(topo)
	res.Timer = timer
	gen, exc, fail := res.Counts()
	p.log.Info("generation finished",
		zap.Int("types", len(res.Types)),
		zap.Int("generated", gen),
		zap.Int("excluded", exc),
		zap.Int("failed", fail),
		zap.Int("batches", len(res.Order)),
		zap.Duration("elapsed", time.Since(start)))
	root.Attr("types", strconv.Itoa(len(res.Types))).Attr("batches", strconv.Itoa(len(res.Order)))
	return res, nil
}

func (p *pass) phase(timer *observ.Timer, parent *trace.Span, stage Stage, fn func() (string, error)) error {
	name := string(stage)
	p.req.Phases.notify(PhaseEvent{Stage: stage, Status: PhaseStart})
	span := parent.Child(trace.ScopePass, name)
	started := time.Now()
	var note string
	err := timer.Track(name, func() (string, error) {
		var err error
		note, err = fn()
		return note, err
	})
	if err != nil {
		note = "failed: " + err.Error()
	}
	span.End(note)
	p.req.Phases.notify(PhaseEvent{Stage: stage, Status: PhaseEnd, Note: note, Err: err, Elapsed: time.Since(started)})
	return err
}

// prepare sets up the shared environment and returns the keys of the run.
func (p *pass) prepare() ([]types.KeyID, error) {
	snap := p.req.Snapshot
	deny := slices.Concat(snap.Deny, p.req.Deny)
	p.env = names.NewEnv(snap, types.NewInterner(), deny)
	for _, d := range p.env.UnmatchedDeny() {
		p.log.Warn("deny-list entry matches no type", zap.String("entry", d))
	}
	sizer, err := layout.NewSizer(snap, p.req.Target)
	if err != nil {
		return nil, err
	}
	p.builder = builder.New(p.env, sizer, nil)

	ids := make([]types.KeyID, 0, len(snap.TypeDefs)+len(snap.GenericClasses))
	for i := range snap.TypeDefs {
		def := metadata.TypeDefIndex(i) //nolint:gosec // bounded by len(TypeDefs)
		if snap.TypeDefs[i].Generic != metadata.NoContainer && !p.req.IncludeTemplates {
			continue
		}
		ids = append(ids, p.env.Keys.Intern(types.Key{Def: def}))
	}
	for i := range snap.GenericClasses {
		c := metadata.GenericClassIndex(i) //nolint:gosec // bounded by len(GenericClasses)
		k, err := types.ClassKey(snap, c)
		if err != nil {
			return nil, err
		}
		// Classes still naming generic parameters are shapes, not instances.
		if strings.Contains(k.Args, "!") {
			continue
		}
		id, err := p.builder.Register(c)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	for _, spec := range snap.MethodSpecs {
		if err := p.builder.AddMethodInstantiation(spec); err != nil {
			return nil, err
		}
	}

	// Shared identities go to the lowest key.
	slices.Sort(ids)
	ids = slices.Compact(ids)
	for _, id := range ids {
		if _, _, err := p.builder.Claim(id); err != nil {
			// Build reports the same failure against the type.
			p.log.Debug("claim failed", zap.String("type", p.env.FullName(p.env.Keys.MustLookup(id))), zap.Error(err))
		}
	}
	return ids, nil
}

func (p *pass) namespace(k types.Key) string {
	root, _ := p.env.Snap.Root(k.Def)
	if d, ok := p.env.Snap.Def(root); ok {
		return d.Namespace
	}
	return ""
}

// failCycles fails every type on an embedding cycle and every type that
// embeds one.
func (p *pass) failCycles(topo *dag.Topo) {
	if !topo.Cyclic {
		return
	}
	cycle := make([]string, 0, len(topo.Cycles))
	for _, n := range topo.Cycles {
		cycle = append(cycle, p.results[n].Name)
	}
	for _, n := range topo.Cycles {
		r := &p.results[n]
		err := &layout.LayoutError{Kind: layout.ErrRecursiveValueType, Type: r.Name, Cycle: cycle}
		diag.ReportError(diag.BagReporter{Bag: p.bags[n]}, diag.LayoutRecursiveValue, diag.Subject{Type: r.Name}, err.Error()).Emit()
		p.fail(n, err)
	}
	for _, n := range topo.Blocked {
		r := &p.results[n]
		err := fmt.Errorf("%w: embeds a recursive value type", ErrDependencyFailed)
		diag.ReportError(diag.BagReporter{Bag: p.bags[n]}, diag.LayoutDependencyFailed, diag.Subject{Type: r.Name}, err.Error()).Emit()
		p.fail(n, err)
	}
}

func (p *pass) fail(n dag.NodeID, err error) {
	r := &p.results[n]
	r.Outcome = OutcomeFailed
	r.Err = &TypeError{Name: r.Name, Key: r.Key, Err: err}
	p.log.Warn("type failed", zap.String("type", r.Name), zap.Error(err))
	emit(p.req.Progress, Event{Type: r.Name, Namespace: r.Namespace, Stage: StageBuild, Status: StatusError, Err: r.Err})
}

func (p *pass) runBatch(ctx context.Context, parent *trace.Span, i int, batch []dag.NodeID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	span := parent.Child(trace.ScopeBatch, "batch "+strconv.Itoa(i))
	defer span.End(strconv.Itoa(len(batch)) + " types")

	jobs := p.req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(batch))))
	for _, n := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p.buildOne(n, span.ID())
			return nil
		})
	}
	return g.Wait()
}

// buildOne builds the type of node n. Embedded types live in earlier
// batches, so their slots are final.
func (p *pass) buildOne(n dag.NodeID, parent uint64) {
	r := &p.results[n]
	bag := p.bags[n]
	rep := diag.BagReporter{Bag: bag}
	span := trace.Begin(p.tracer, trace.ScopeType, r.Name, parent)
	started := time.Now()
	emit(p.req.Progress, Event{Type: r.Name, Namespace: r.Namespace, Stage: StageBuild, Status: StatusWorking})

	for _, dep := range r.Embeds {
		dn, ok := p.idx.Node(dep)
		if !ok || dn == n || p.results[dn].Outcome != OutcomeFailed {
			continue
		}
		err := fmt.Errorf("%w: %s", ErrDependencyFailed, p.results[dn].Name)
		diag.ReportError(rep, diag.LayoutDependencyFailed, diag.Subject{Type: r.Name}, err.Error()).Emit()
		p.fail(n, err)
		span.End("dependency failed")
		return
	}

	m, acc, err := p.builder.Build(r.ID, rep)
	switch {
	case errors.Is(err, builder.ErrExcluded):
		r.Outcome = OutcomeExcluded
		r.Err = err
		p.log.Debug("type excluded", zap.String("type", r.Name), zap.Error(err))
		emit(p.req.Progress, Event{Type: r.Name, Namespace: r.Namespace, Stage: StageBuild, Status: StatusExcluded, Elapsed: time.Since(started)})
		span.End("excluded")
	case err != nil:
		diag.ReportError(rep, diag.BindTypeFailed, diag.Subject{Type: r.Name}, err.Error()).Emit()
		p.fail(n, err)
		span.End("failed")
	default:
		r.Outcome = OutcomeGenerated
		r.Model = m
		r.Requirements = acc.Requirements()
		if m.Key.IsInstance() {
			r.Name = m.Name.Pointer(false).String()
		}
		emit(p.req.Progress, Event{Type: r.Name, Namespace: r.Namespace, Stage: StageBuild, Status: StatusDone, Elapsed: time.Since(started)})
		span.End("")
	}
}

func (p *pass) counts() (gen, exc, fail int) {
	for i := range p.results {
		switch p.results[i].Outcome {
		case OutcomeGenerated:
			gen++
		case OutcomeExcluded:
			exc++
		case OutcomeFailed:
			fail++
		}
	}
	return gen, exc, fail
}

// collect merges the per-type diagnostics in KeyID order.
func (p *pass) collect(topo *dag.Topo) *Result {
	res := &Result{
		Types:         p.results,
		UnmatchedDeny: p.env.UnmatchedDeny(),
		Diagnostics:   diag.NewBag(0),
		env:           p.env,
		index:         make(map[types.KeyID]int, len(p.results)),
	}
	for i := range p.results {
		res.index[p.results[i].ID] = i
		res.Diagnostics.Merge(p.bags[i])
	}
	for _, d := range res.UnmatchedDeny {
		diag.ReportWarning(diag.BagReporter{Bag: res.Diagnostics}, diag.BindInfo, diag.Subject{Type: d},
			"deny-list entry matches no type").Emit()
	}
	res.Diagnostics.Sort()
	res.Diagnostics.Dedup()
	res.Order = make([][]types.KeyID, len(topo.Batches))
	for i, batch := range topo.Batches {
		res.Order[i] = make([]types.KeyID, len(batch))
		for j, n := range batch {
			res.Order[i][j] = p.idx.Key(n)
		}
	}
	return res
}
