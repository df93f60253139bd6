package driver

import "time"

// PhaseStatus marks a phase boundary.
type PhaseStatus int

const (
	PhaseStart PhaseStatus = iota
	PhaseEnd
)

// PhaseEvent reports entry to or exit from one of the run-wide stages.
// Note and Err are only set on PhaseEnd: Note is the stage summary (type,
// batch or outcome counts) and Err the failure that aborted the run.
type PhaseEvent struct {
	Stage   Stage
	Status  PhaseStatus
	Note    string
	Err     error
	Elapsed time.Duration
}

// PhaseObserver is called synchronously from Generate, in stage order. It
// never sees per-type progress; use a ProgressSink for that.
type PhaseObserver func(PhaseEvent)

func (o PhaseObserver) notify(ev PhaseEvent) {
	if o != nil {
		o(ev)
	}
}
