// Package storagemem implements an in-memory storage.ReadWriteBucket,
// used for tests and for synthesising trees/overlays that never need to
// touch disk.
package storagemem

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/normalpath"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/storage"
)

// NewBucket returns a new, empty in-memory bucket.
func NewBucket() storage.ReadWriteBucket {
	return &bucket{data: make(map[string][]byte)}
}

// NewReadBucket returns a new immutable in-memory bucket backed directly by
// pathToData. pathToData must not be modified afterwards.
func NewReadBucket(pathToData map[string][]byte) (storage.ReadBucket, error) {
	normalized := make(map[string][]byte, len(pathToData))
	for path, data := range pathToData {
		normalizedPath, err := normalpath.NormalizeAndValidate(path)
		if err != nil {
			return nil, err
		}
		normalized[normalizedPath] = data
	}
	return &bucket{data: normalized}, nil
}

type bucket struct {
	lock sync.RWMutex
	data map[string][]byte
}

type objectInfo struct{ size int64 }

func (o objectInfo) Size() int64 { return o.size }

func (b *bucket) Get(_ context.Context, path string) (storage.ReadObject, error) {
	path, err := normalpath.NormalizeAndValidate(path)
	if err != nil {
		return nil, err
	}
	b.lock.RLock()
	defer b.lock.RUnlock()
	data, ok := b.data[path]
	if !ok {
		return nil, storage.NewErrNotExist(path)
	}
	return &readObject{Reader: bytes.NewReader(data), size: int64(len(data))}, nil
}

func (b *bucket) Stat(_ context.Context, path string) (storage.ObjectInfo, error) {
	path, err := normalpath.NormalizeAndValidate(path)
	if err != nil {
		return nil, err
	}
	b.lock.RLock()
	defer b.lock.RUnlock()
	data, ok := b.data[path]
	if !ok {
		return nil, storage.NewErrNotExist(path)
	}
	return objectInfo{size: int64(len(data))}, nil
}

func (b *bucket) Walk(_ context.Context, prefix string, f func(string) error) error {
	prefix, err := normalpath.NormalizeAndValidate(prefix)
	if err != nil {
		return err
	}
	b.lock.RLock()
	paths := make([]string, 0, len(b.data))
	for path := range b.data {
		if prefix == "." || normalpath.IsMatch(prefix, path) {
			paths = append(paths, path)
		}
	}
	b.lock.RUnlock()
	sort.Strings(paths)
	for _, path := range paths {
		if err := f(path); err != nil {
			return err
		}
	}
	return nil
}

func (b *bucket) Put(_ context.Context, path string, size int64) (storage.WriteObject, error) {
	path, err := normalpath.NormalizeAndValidate(path)
	if err != nil {
		return nil, err
	}
	return &writeObject{bucket: b, path: path, size: size}, nil
}

type readObject struct {
	*bytes.Reader
	size int64
}

func (r *readObject) Close() error          { return nil }
func (r *readObject) Info() storage.ObjectInfo { return objectInfo{size: r.size} }

type writeObject struct {
	bucket *bucket
	path   string
	size   int64
	buf    bytes.Buffer
}

func (w *writeObject) Write(p []byte) (int, error) {
	if int64(w.buf.Len()+len(p)) > w.size {
		return 0, fmt.Errorf("write past declared size for %q", w.path)
	}
	return w.buf.Write(p)
}

func (w *writeObject) Info() storage.ObjectInfo { return objectInfo{size: int64(w.buf.Len())} }

func (w *writeObject) Close() error {
	if int64(w.buf.Len()) != w.size {
		return storage.ErrIncompleteWrite
	}
	w.bucket.lock.Lock()
	defer w.bucket.lock.Unlock()
	w.bucket.data[w.path] = append([]byte(nil), w.buf.Bytes()...)
	return nil
}
