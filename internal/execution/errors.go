package execution

import (
	"errors"
	"fmt"
)

// ErrorKind splits submission failures into retryable and fatal.
type ErrorKind int

const (
	// Transient failures are retried with backoff up to the attempt cap.
	Transient ErrorKind = iota
	// Permanent failures are never retried; the position errors out.
	Permanent
)

func (k ErrorKind) String() string {
	if k == Permanent {
		return "permanent"
	}
	return "transient"
}

// ExecError is a classified submission failure.
type ExecError struct {
	Kind ErrorKind
	Op   string // "buy" or "sell"
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Kind, e.Op, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// NewTransient wraps an error as a retryable submission failure.
func NewTransient(op string, err error) *ExecError {
	return &ExecError{Kind: Transient, Op: op, Err: err}
}

// NewPermanent wraps an error as a fatal submission failure.
func NewPermanent(op string, err error) *ExecError {
	return &ExecError{Kind: Permanent, Op: op, Err: err}
}

// IsTransient reports whether err is a retryable submission failure.
// Unclassified errors are treated as transient so a flaky collaborator
// gets the retry budget rather than erroring the position.
func IsTransient(err error) bool {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Kind == Transient
	}
	return err != nil
}

// IsPermanent reports whether err is a fatal submission failure.
func IsPermanent(err error) bool {
	var ee *ExecError
	return errors.As(err, &ee) && ee.Kind == Permanent
}
