package types

import "fmt"

// Error taxonomy -------------------------------------------------------------
//
// NotFoundError and CollaboratorError abort the enclosing operation.
// ParseError and ReadError are contained at the file boundary: the file is
// skipped and the failure is recorded as a Warning on the report.

// NotFoundError reports a missing analysis root.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Path)
}

// ParseError reports a source file that could not be parsed.
type ParseError struct {
	Path string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Path, e.Msg)
}

// ReadError reports a file that could not be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// CollaboratorError reports a failure in an external collaborator
// (repository fetch or text generation). It is propagated verbatim to the
// caller of the whole pipeline.
type CollaboratorError struct {
	Collaborator string // "fetch" or "generate"
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s collaborator: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
