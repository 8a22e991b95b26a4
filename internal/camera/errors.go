package camera

import (
	"errors"
	"fmt"
)

// Kind classifies setup and lifecycle failures.
type Kind int

// Error kinds.
const (
	KindSubsystemUnavailable Kind = iota + 1
	KindAcquisitionFailed
	KindInvalidConfiguration
	KindAllocationFailed
	KindInvalidState
)

func (k Kind) String() string {
	switch k {
	case KindSubsystemUnavailable:
		return "subsystem_unavailable"
	case KindAcquisitionFailed:
		return "acquisition_failed"
	case KindInvalidConfiguration:
		return "invalid_configuration"
	case KindAllocationFailed:
		return "allocation_failed"
	case KindInvalidState:
		return "invalid_state"
	default:
		return "unknown"
	}
}

// Kind sentinels. errors.Is(err, ErrAllocationFailed) matches every
// *Error of that kind, including request build failures.
var (
	ErrSubsystemUnavailable = errors.New("camera subsystem unavailable")
	ErrAcquisitionFailed    = errors.New("device acquisition failed")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrAllocationFailed     = errors.New("buffer allocation failed")
	ErrInvalidState         = errors.New("invalid state")
)

// Specific causes, wrapped inside *Error.
var (
	ErrNoDeviceFound      = errors.New("no camera found")
	ErrDeviceBusy         = errors.New("device busy")
	ErrUnsupportedFormat  = errors.New("no stream role supports the requested format")
	ErrRequestBuildFailed = errors.New("capture request build failed")
	ErrTeardownOrder      = errors.New("teardown out of order")
)

var kindSentinels = map[Kind]error{
	KindSubsystemUnavailable: ErrSubsystemUnavailable,
	KindAcquisitionFailed:    ErrAcquisitionFailed,
	KindInvalidConfiguration: ErrInvalidConfiguration,
	KindAllocationFailed:     ErrAllocationFailed,
	KindInvalidState:         ErrInvalidState,
}

// Error is a classified failure of a camera operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + kindSentinels[e.Kind].Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func stateError(op string, format string, args ...any) *Error {
	return newError(KindInvalidState, op, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the first *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
