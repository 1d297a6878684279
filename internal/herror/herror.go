// Package herror defines the error taxonomy shared across the backup
// engine: every fallible operation returns (or wraps) one of these kinds so
// callers — ultimately the CLI — can decide how to report and exit.
package herror

import (
	"errors"
	"fmt"
)

// Kind classifies where a failure originated.
type Kind string

const (
	Config  Kind = "config"
	IO      Kind = "io"
	Index   Kind = "index"
	Storage Kind = "storage"
	Engine  Kind = "engine"
	Cli     Kind = "cli"
)

// Error wraps an underlying cause with a Kind and message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with no underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches a Kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// ErrNotFound is returned by restore/list operations when the requested key
// and timestamp combination has no matching revision.
var ErrNotFound = errors.New("not found")

// NodeError carries the offending node alongside a message, for failures
// like a blob missing from the object store during restore.
type NodeError struct {
	Msg  string
	Node any
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s (node=%+v)", e.Msg, e.Node)
}

// GeneralWithNode builds a NodeError.
func GeneralWithNode(msg string, node any) *NodeError {
	return &NodeError{Msg: msg, Node: node}
}

// IsNotFound reports whether err (or any error it wraps) is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
