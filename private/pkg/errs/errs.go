// Package errs implements a user error abstraction.
//
// This helps the CLI determine what errors should be reported to the user
// as configuration or invariant problems (with a stable exit code, see
// justmrcli) as opposed to errors that indicate an internal bug.
package errs

import "fmt"

// Kind classifies an error for exit-code and logging purposes.
type Kind int

const (
	// KindInternal is the zero value: an unclassified/internal error.
	KindInternal Kind = iota
	// KindConfig is a malformed or invalid configuration.
	KindConfig
	// KindParse is malformed JSON in an artifact, action, or repo description.
	KindParse
	// KindNotFound is a missing digest/commit/blob/tree.
	KindNotFound
	// KindCycle is a dependency cycle detected by the async map.
	KindCycle
	// KindInvariant is a programming-error-level invariant violation
	// (duplicate action id, duplicate output path, tree-stage collision).
	KindInvariant
)

// New returns a new kinded error.
func New(kind Kind, value string) error {
	return &kindedError{kind: kind, value: value}
}

// Newf returns a new formatted kinded error.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &kindedError{kind: kind, value: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or KindInternal if err was not created by
// this package.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	if kerr, ok := err.(*kindedError); ok {
		return kerr.kind
	}
	return KindInternal
}

// Is reports whether err was created by this package with the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

type kindedError struct {
	kind  Kind
	value string
}

func (e *kindedError) Error() string {
	return e.value
}
