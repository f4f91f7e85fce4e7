package omestack

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers branch on.
var (
	// ErrFileNotFound is returned by Open for a nonexistent path.
	ErrFileNotFound = errors.New("file not found")

	// ErrUnsupportedOperation is returned when channel reinterpretation is
	// requested on a native OME-TIFF, whose dimension order is authoritative.
	ErrUnsupportedOperation = errors.New("operation not supported for this format")

	// ErrCancelled is returned by SaveWithMetadata when the progress
	// callback requested a stop. It is deliberately distinct from
	// EncodeError so callers can suppress error reporting for a
	// user-initiated cancel.
	ErrCancelled = errors.New("save cancelled")

	// ErrUnsupportedDisplay is returned by Normalize for pixel types that
	// have no display representation (complex). The accompanying plane is
	// empty and should be treated as "nothing to display".
	ErrUnsupportedDisplay = errors.New("pixel type not supported for display")
)

// InvalidArgumentError reports a caller-supplied value the current file
// cannot accommodate, e.g. an interleaved channel count that does not divide
// the plane count.
type InvalidArgumentError struct {
	msg string
}

func (e *InvalidArgumentError) Error() string {
	return e.msg
}

func invalidArgumentf(format string, args ...interface{}) error {
	return &InvalidArgumentError{msg: fmt.Sprintf(format, args...)}
}

// DecodeError wraps a failure of the underlying format library while
// opening, querying or reading a file.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError wraps a failure while building output metadata or writing
// planes. A write that returns an EncodeError has not produced a valid file.
type EncodeError struct {
	Op  string
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Op, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
