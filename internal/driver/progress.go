package driver

import "time"

// Stage describes a high-level generation phase.
type Stage string

const (
	// StagePrepare interns keys and registers instantiations.
	StagePrepare Stage = "prepare"
	// StageOrder builds the embedding graph.
	StageOrder Stage = "order"
	// StageBuild constructs type models.
	StageBuild Stage = "build"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the type is waiting for its batch.
	StatusQueued Status = "queued"
	// StatusWorking indicates the type is being built.
	StatusWorking Status = "working"
	// StatusDone indicates the model was produced.
	StatusDone Status = "done"
	// StatusExcluded indicates the type is deliberately not generated.
	StatusExcluded Status = "excluded"
	// StatusError indicates the type failed.
	StatusError Status = "error"
)

// Event reports progress for a type (or for the whole run when Type is empty).
type Event struct {
	Type      string
	Namespace string
	Stage     Stage
	Status    Status
	Err       error
	Elapsed   time.Duration
}

// ProgressSink consumes progress events. OnEvent is called from worker
// goroutines and must be safe for concurrent use.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

func emit(sink ProgressSink, evt Event) {
	if sink == nil {
		return
	}
	sink.OnEvent(evt)
}
