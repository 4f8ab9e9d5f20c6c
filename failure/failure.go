// Package failure defines the error kinds reported by a compatibility pass.
// Every check returns a *Error so the CLI can name what went wrong.
package failure

import (
	"errors"
	"fmt"
)

// Kind identifies which check failed.
type Kind int

const (
	Unknown Kind = iota
	MissingArtifact
	MalformedArtifact
	ContractVersionMismatch
	ConfigurationError
	PinnedRevisionMismatch
	MissingOpcodes
	MissingFormat
	BuildFailed
	EnvironmentError
	UnexpectedFailure
	UnexpectedSuccess
	MissingExpectedOutput
	MissingFaultMarker
	Timeout
)

var kindNames = [...]string{
	Unknown:                 "Unknown",
	MissingArtifact:         "MissingArtifact",
	MalformedArtifact:       "MalformedArtifact",
	ContractVersionMismatch: "ContractVersionMismatch",
	ConfigurationError:      "ConfigurationError",
	PinnedRevisionMismatch:  "PinnedRevisionMismatch",
	MissingOpcodes:          "MissingOpcodes",
	MissingFormat:           "MissingFormat",
	BuildFailed:             "BuildFailed",
	EnvironmentError:        "EnvironmentError",
	UnexpectedFailure:       "UnexpectedFailure",
	UnexpectedSuccess:       "UnexpectedSuccess",
	MissingExpectedOutput:   "MissingExpectedOutput",
	MissingFaultMarker:      "MissingFaultMarker",
	Timeout:                 "Timeout",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified failure. Msg carries the concrete values involved
// (expected vs. actual); Err is the optional underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Newf creates a failure of the given kind.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrapf creates a failure of the given kind around a cause.
func Wrapf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err's chain carries a failure of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
