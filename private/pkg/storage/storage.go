// Package storage implements a small storage abstraction used to back the
// content-addressed tiers in private/pkg/cas and the source-file reads in
// private/pkg/gitobj.
//
// This abstracts filesystem calls and gives an in-memory implementation for
// tests, mirroring the split the teacher's internal/pkg/storage makes
// between storageos and storagemem.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/normalpath"
)

// ErrIncompleteWrite is returned if a write is closed before reaching the
// declared size.
var ErrIncompleteWrite = errors.New("incomplete write")

// NewErrNotExist returns a path-scoped "does not exist" error.
func NewErrNotExist(path string) error {
	return normalpath.NewErrNotExist(path)
}

// IsNotExist returns true for an error produced by NewErrNotExist.
func IsNotExist(err error) bool {
	return normalpath.IsNotExist(err)
}

// ObjectInfo describes a stored object.
type ObjectInfo interface {
	// Size is the object size in bytes.
	Size() int64
}

// ReadObject is a read-only, must-be-closed object.
type ReadObject interface {
	io.ReadCloser
	Info() ObjectInfo
}

// WriteObject is a write-only, must-be-closed object. Close returns
// ErrIncompleteWrite if fewer bytes were written than declared at Put.
type WriteObject interface {
	io.WriteCloser
	Info() ObjectInfo
}

// ReadBucket is a read-only content bucket.
//
// All paths are relative, cleaned, and to-slash'ed by every method. Paths
// that jump context (contain a leading "..") are rejected.
type ReadBucket interface {
	// Get returns ErrNotExist-satisfying error if path does not exist.
	Get(ctx context.Context, path string) (ReadObject, error)
	// Stat returns ErrNotExist-satisfying error if path does not exist.
	Stat(ctx context.Context, path string) (ObjectInfo, error)
	// Walk calls f for every object at or below prefix.
	Walk(ctx context.Context, prefix string, f func(path string) error) error
}

// ReadWriteBucket is a read/write content bucket.
type ReadWriteBucket interface {
	ReadBucket
	// Put returns a WriteObject truncating any existing content at path.
	Put(ctx context.Context, path string, size int64) (WriteObject, error)
}

// ReadPath reads the full content at path.
func ReadPath(ctx context.Context, bucket ReadBucket, path string) (_ []byte, retErr error) {
	obj, err := bucket.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := obj.Close(); cerr != nil && retErr == nil {
			retErr = cerr
		}
	}()
	return io.ReadAll(obj)
}

// WritePath writes content to path, sized to len(content).
func WritePath(ctx context.Context, bucket ReadWriteBucket, path string, content []byte) (retErr error) {
	obj, err := bucket.Put(ctx, path, int64(len(content)))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := obj.Close(); cerr != nil && retErr == nil {
			retErr = cerr
		}
	}()
	_, err = obj.Write(content)
	return err
}

// Exists reports whether path exists in bucket.
func Exists(ctx context.Context, bucket ReadBucket, path string) (bool, error) {
	_, err := bucket.Stat(ctx, path)
	if err != nil {
		if IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Copy copies every object in from into to, returning the number copied.
func Copy(ctx context.Context, from ReadBucket, to ReadWriteBucket) (int, error) {
	count := 0
	err := from.Walk(ctx, ".", func(path string) error {
		data, err := ReadPath(ctx, from, path)
		if err != nil {
			return err
		}
		if err := WritePath(ctx, to, path, data); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}
