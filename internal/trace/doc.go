// Package trace records spans of a generation run.
//
// A run opens one driver span, one span per pass and per batch, and one
// span per type model. The tracer travels in the context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	root := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "generate", 0)
//	pass := root.Child(trace.ScopePass, "build")
//	defer pass.End("")
//
// The level selects the finest scope that is recorded: pass, batch or
// type. Events go to a stream, to an in-memory ring, or to both.
package trace
