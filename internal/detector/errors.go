package detector

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for classifying a Failure with errors.Is.
var (
	ErrTransport = errors.New("detector: transport failure")
	ErrServer    = errors.New("detector: server failure")
	ErrMalformed = errors.New("detector: malformed response")
)

// FailureKind distinguishes why a detector call failed. Callers that only
// care about success or failure can ignore it.
type FailureKind int

const (
	KindTransport FailureKind = iota + 1
	KindServer
	KindMalformed
)

func (k FailureKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Failure is the single error type returned by every Client operation.
type Failure struct {
	Op         string
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (f *Failure) Error() string {
	switch {
	case f.Kind == KindServer:
		return fmt.Sprintf("detector %s: %s failure: HTTP %d", f.Op, f.Kind, f.StatusCode)
	case f.Err != nil:
		return fmt.Sprintf("detector %s: %s failure: %v", f.Op, f.Kind, f.Err)
	default:
		return fmt.Sprintf("detector %s: %s failure", f.Op, f.Kind)
	}
}

func (f *Failure) Unwrap() error { return f.Err }

// Is matches the package sentinels by kind.
func (f *Failure) Is(target error) bool {
	switch target {
	case ErrTransport:
		return f.Kind == KindTransport
	case ErrServer:
		return f.Kind == KindServer
	case ErrMalformed:
		return f.Kind == KindMalformed
	}
	return false
}

// Timeout reports whether the failure was caused by the per-call deadline.
func (f *Failure) Timeout() bool {
	return errors.Is(f.Err, context.DeadlineExceeded)
}

func transportFailure(op string, err error) error {
	return &Failure{Op: op, Kind: KindTransport, Err: err}
}

func serverFailure(op string, status int) error {
	return &Failure{Op: op, Kind: KindServer, StatusCode: status}
}

func malformedFailure(op string, err error) error {
	return &Failure{Op: op, Kind: KindMalformed, Err: err}
}
