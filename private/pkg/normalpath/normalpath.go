// Package normalpath provides path normalisation and validation helpers
// shared by the storage, artifact, and git-object layers.
//
// A normalized path is cleaned and to-slash'ed. A validated path is
// normalized and additionally guaranteed relative and non-upwards (it
// cannot escape the directory it is resolved against).
package normalpath

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
)

const upwardsPrefix = "../"

var (
	errNotRelative  = errors.New("expected to be relative")
	errOutsideRoot  = errors.New("is outside the context directory")
	errNotExist     = errors.New("does not exist")
)

// Error is a path-scoped error.
type Error struct {
	Path string
	Err  error
}

// NewError returns a new Error.
func NewError(path string, err error) *Error {
	return &Error{Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := "error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return e.Path + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorEquals returns true if err is an *Error wrapping target.
func ErrorEquals(err error, target error) bool {
	if err == nil {
		return false
	}
	pathErr, ok := err.(*Error)
	if !ok {
		return false
	}
	return pathErr.Err == target
}

// NewErrNotExist returns a path-scoped "does not exist" error.
func NewErrNotExist(path string) error {
	return NewError(path, errNotExist)
}

// IsNotExist returns true if err is a path-scoped "does not exist" error.
func IsNotExist(err error) bool {
	return ErrorEquals(err, errNotExist)
}

// Normalize cleans and to-slash'es path. Normalize("") == ".".
func Normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// NormalizeAndValidate normalizes path and rejects absolute or
// context-jumping (leading "../" after normalisation) paths.
//
// Normalize(Normalize(p)) == Normalize(p): Normalize is
// idempotent because filepath.Clean is idempotent on an already-clean,
// slash'ed path.
func NormalizeAndValidate(path string) (string, error) {
	path = Normalize(path)
	if filepath.IsAbs(path) {
		return "", NewError(path, errNotRelative)
	}
	if strings.HasPrefix(path, upwardsPrefix) {
		return "", NewError(path, errOutsideRoot)
	}
	return path, nil
}

// IsNonUpwards reports whether path, once normalized, never escapes its
// own root — i.e. it is relative and does not begin with "..".
//
//	IsNonUpwards("/x")        == false
//	IsNonUpwards("x")         == true
//	IsNonUpwards("../x")      == false
//	IsNonUpwards("a/../../x") == false
func IsNonUpwards(path string) bool {
	if filepath.IsAbs(path) {
		return false
	}
	normalized := Normalize(path)
	return normalized != ".." && !strings.HasPrefix(normalized, upwardsPrefix)
}

// IsConfined reports whether appending target onto a file living at dir
// stays inside the root dir was resolved against: i.e. dir/target, once
// normalized, never begins with "..".
//
//	IsConfined("../foo", "dummy/bar") == true    // dummy/bar/../foo -> dummy/foo
//	IsConfined("foo/../bar/../../../foo", "dummy") == false
func IsConfined(target string, dir string) bool {
	joined := Normalize(filepath.Join(dir, target))
	return joined != ".." && !strings.HasPrefix(joined, upwardsPrefix)
}

// Dir is filepath.Dir, normalized.
func Dir(path string) string {
	return Normalize(filepath.Dir(path))
}

// Base is filepath.Base, normalized.
func Base(path string) string {
	return Normalize(filepath.Base(path))
}

// Join is filepath.Join, normalized. Empty strings are ignored.
func Join(paths ...string) string {
	joined := filepath.Join(paths...)
	if joined == "" {
		return ""
	}
	return Normalize(joined)
}

// IsMatch returns true if value is equal to, or a containing directory of,
// path. value == "." always matches.
func IsMatch(value string, path string) bool {
	if value == "." {
		return true
	}
	for cur := path; cur != "."; cur = Dir(cur) {
		if value == cur {
			return true
		}
	}
	return false
}

// ByDir groups paths by their Dir, sorting each group.
func ByDir(paths ...string) map[string][]string {
	m := make(map[string][]string)
	for _, path := range paths {
		path = Normalize(path)
		dir := Dir(path)
		m[dir] = append(m[dir], path)
	}
	for _, group := range m {
		sort.Strings(group)
	}
	return m
}
