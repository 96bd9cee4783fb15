// Package fault defines the error taxonomy shared by the favour workflows,
// the store client, and the HTTP edge.
//
// Every failure that can reach a user is classified by a Code. The Detail
// field carries the first structured, human-readable message available at the
// failure site; notifiers fall back to a generic per-action message when it
// is empty.
package fault

import (
	"errors"
	"fmt"
)

// Code classifies a failure.
type Code string

const (
	// Forbidden means a permission check recomputed false at call time.
	Forbidden Code = "forbidden"
	// NotFound means the favour record or blob path is absent.
	NotFound Code = "not_found"
	// Unauthorized means the viewer credential was rejected upstream.
	Unauthorized Code = "unauthorized"
	// Transport covers network and remote-store failures.
	Transport Code = "transport"
	// StorageFailure covers blob upload failures. No remote-record mutation
	// has happened when this is returned.
	StorageFailure Code = "storage_failure"
	// RegistrationFailure means the remote evidence registration failed after
	// a successful upload. The uploaded blob is orphaned; the favour record is
	// unchanged and the action is retryable.
	RegistrationFailure Code = "registration_failure"
)

// Error is a classified failure with an optional structured detail.
type Error struct {
	Code   Code
	Detail string // human-readable, user-facing; may be empty
	Err    error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, &Error{Code: c}) match on code alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New builds a classified error with a user-facing detail.
func New(code Code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

// Wrap classifies an underlying error.
func Wrap(code Code, detail string, err error) *Error {
	return &Error{Code: code, Detail: detail, Err: err}
}

// CodeOf extracts the classification from err, walking wrapped causes.
// Unclassified errors report Transport: at this layer everything else that
// can fail is an I/O collaborator.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Transport
}

// DetailOf returns the first structured detail found in err's chain, or "".
func DetailOf(err error) string {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return ""
		}
		if e.Detail != "" {
			return e.Detail
		}
		err = e.Err
	}
	return ""
}
