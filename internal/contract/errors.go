package contract

import (
	"errors"
	"fmt"
)

// ErrorKind classifies fatal scan errors.
type ErrorKind string

// All fatal error kinds.
const (
	KindRepositoryUnreachable ErrorKind = "repository_unreachable"
	KindAuthenticationFailure ErrorKind = "authentication_failure"
	KindCloneFailure          ErrorKind = "clone_failure"
	KindInvalidRequest        ErrorKind = "invalid_request"
	KindTimeout               ErrorKind = "timeout"
	KindCancelled             ErrorKind = "cancelled"
	KindInternal              ErrorKind = "internal"
)

// Sentinel errors matching each kind, usable with errors.Is.
var (
	ErrRepositoryUnreachable = errors.New("repository unreachable")
	ErrAuthenticationFailure = errors.New("authentication failure")
	ErrCloneFailure          = errors.New("clone failure")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrTimeout               = errors.New("scan timed out")
	ErrCancelled             = errors.New("scan cancelled")
	ErrInternal              = errors.New("internal error")
)

// ErrEstimateUnsupported is returned by estimators for hosts they cannot introspect.
var ErrEstimateUnsupported = errors.New("size estimation not supported for this host")

// ErrScanTimeout is the cancellation cause attached when the total scan timeout fires.
var ErrScanTimeout = errors.New("total scan timeout exceeded")

var sentinels = map[ErrorKind]error{
	KindRepositoryUnreachable: ErrRepositoryUnreachable,
	KindAuthenticationFailure: ErrAuthenticationFailure,
	KindCloneFailure:          ErrCloneFailure,
	KindInvalidRequest:        ErrInvalidRequest,
	KindTimeout:               ErrTimeout,
	KindCancelled:             ErrCancelled,
	KindInternal:              ErrInternal,
}

// ScanError is a fatal error that ends a scan without a summary.
type ScanError struct {
	Kind ErrorKind
	Op   string // pipeline stage that failed, e.g. "clone"
	Err  error
}

// NewScanError wraps err with a kind and the failing operation.
func NewScanError(kind ErrorKind, op string, err error) *ScanError {
	return &ScanError{Kind: kind, Op: op, Err: err}
}

func (e *ScanError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying error to errors.Is.
func (e *ScanError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := sentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the kind of the first ScanError in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
