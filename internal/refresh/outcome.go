package refresh

import (
	"time"

	"github.com/HerbHall/mdpanel/internal/detector"
)

// Source names used in logs and metrics.
const (
	SourceStatus   = "status"
	SourceNetworks = "networks"
	SourceTargets  = "targets"
)

// Result holds either a fetched value or the error that prevented it.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the fetch succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

func resultOf[T any](v T, err error) Result[T] {
	if err != nil {
		return Result[T]{Err: err}
	}
	return Result[T]{Value: v}
}

// Outcome is the joined result of one refresh cycle. Each sub-result is
// independent of the others.
type Outcome struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration

	Status   Result[detector.Status]
	Networks Result[[]detector.Network]
	Targets  Result[[]string]
}

// Failed reports whether at least one fetch in the cycle failed.
func (o Outcome) Failed() bool {
	return !o.Status.OK() || !o.Networks.OK() || !o.Targets.OK()
}

// Failures returns the number of failed fetches, 0 to 3.
func (o Outcome) Failures() int {
	n := 0
	for _, ok := range []bool{o.Status.OK(), o.Networks.OK(), o.Targets.OK()} {
		if !ok {
			n++
		}
	}
	return n
}
