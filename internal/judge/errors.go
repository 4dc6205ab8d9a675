package judge

import (
	"errors"
	"fmt"
)

// ErrJudge is the sentinel all judge failures match via errors.Is. Callers
// that fall back to deterministic verification only need this one check.
var ErrJudge = errors.New("judge: judgment unavailable")

// ErrorKind distinguishes the two failure classes of a judgment attempt.
type ErrorKind int

const (
	// KindTransport covers everything between us and the model: connection
	// failures, HTTP errors, and timeouts.
	KindTransport ErrorKind = iota

	// KindProtocol means the model answered but the reply was unusable: no
	// JSON object, or required fields missing or mistyped. A protocol failure
	// is an error, never a negative judgment.
	KindProtocol
)

// String returns the kind's log label.
func (k ErrorKind) String() string {
	if k == KindProtocol {
		return "protocol"
	}
	return "transport"
}

// Error is the failure type returned by [Judge.Evaluate]. It matches
// [ErrJudge] via errors.Is and unwraps to the underlying cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("judge: %s: %s failure", e.Op, e.Kind)
	}
	return fmt.Sprintf("judge: %s: %s failure: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is [ErrJudge].
func (e *Error) Is(target error) bool {
	return target == ErrJudge
}

func transportErr(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

func protocolErr(op string, err error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Err: err}
}
