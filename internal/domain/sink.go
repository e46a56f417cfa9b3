package domain

import "context"

// Mode selects how a sink consumes a run's readings.
type Mode int

const (
	// ModePush sinks accept one representative reading per send.
	ModePush Mode = iota
	// ModeBatch sinks persist every reading of the run.
	ModeBatch
)

func (m Mode) String() string {
	switch m {
	case ModePush:
		return "push"
	case ModeBatch:
		return "batch"
	default:
		return "unknown"
	}
}

// Delivery reports what a sink did with the readings it was handed.
type Delivery struct {
	Processed int
	Message   string
}

// Sink is a destination for normalized readings. Push sinks receive a
// one-element slice; batch sinks receive the whole run. Send returns an error
// for transport failures; the dispatcher converts it into a failed Outcome.
type Sink interface {
	Name() string
	Mode() Mode
	Send(ctx context.Context, readings []Reading) (Delivery, error)
}

// Outcome is the result of one dispatch attempt to one sink.
type Outcome struct {
	Sink      string
	Success   bool
	Message   string
	Processed int
}

// Acted reports whether the sink made a judgment about the data: it either
// processed something or failed outright.
func (o Outcome) Acted() bool {
	return o.Processed > 0 || !o.Success
}
