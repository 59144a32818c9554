// Package storageos implements a storage.ReadWriteBucket backed by a
// directory on the local filesystem — the on-disk CAS tiers in
// private/pkg/cas are built on this.
package storageos

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/normalpath"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/storage"
)

// NewBucket returns a new bucket rooted at dir. dir must already exist.
func NewBucket(dir string) (storage.ReadWriteBucket, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, normalpath.NewError(dir, os.ErrInvalid)
	}
	return &bucket{rootDir: absDir}, nil
}

type bucket struct {
	rootDir string
}

func (b *bucket) externalPath(path string) (string, error) {
	path, err := normalpath.NormalizeAndValidate(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.rootDir, filepath.FromSlash(path)), nil
}

type objectInfo struct{ size int64 }

func (o objectInfo) Size() int64 { return o.size }

type readObject struct {
	*os.File
	size int64
}

func (r *readObject) Info() storage.ObjectInfo { return objectInfo{size: r.size} }

func (b *bucket) Get(_ context.Context, path string) (storage.ReadObject, error) {
	externalPath, err := b.externalPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(externalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.NewErrNotExist(path)
		}
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &readObject{File: file, size: info.Size()}, nil
}

func (b *bucket) Stat(_ context.Context, path string) (storage.ObjectInfo, error) {
	externalPath, err := b.externalPath(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(externalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.NewErrNotExist(path)
		}
		return nil, err
	}
	return objectInfo{size: info.Size()}, nil
}

func (b *bucket) Walk(_ context.Context, prefix string, f func(string) error) error {
	prefix, err := normalpath.NormalizeAndValidate(prefix)
	if err != nil {
		return err
	}
	walkRoot := b.rootDir
	if prefix != "." {
		walkRoot = filepath.Join(b.rootDir, filepath.FromSlash(prefix))
	}
	if _, err := os.Stat(walkRoot); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(walkRoot, func(externalPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(b.rootDir, externalPath)
		if err != nil {
			return err
		}
		return f(normalpath.Normalize(relPath))
	})
}

func (b *bucket) Put(_ context.Context, path string, size int64) (storage.WriteObject, error) {
	externalPath, err := b.externalPath(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(externalPath), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(externalPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &writeObject{file: file, size: size}, nil
}

type writeObject struct {
	file    *os.File
	size    int64
	written int64
}

func (w *writeObject) Write(p []byte) (int, error) {
	if w.written+int64(len(p)) > w.size {
		p = p[:w.size-w.written]
		n, err := w.file.Write(p)
		w.written += int64(n)
		if err == nil {
			err = io.EOF
		}
		return n, err
	}
	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *writeObject) Info() storage.ObjectInfo { return objectInfo{size: w.written} }

func (w *writeObject) Close() (retErr error) {
	defer func() {
		if cerr := w.file.Close(); cerr != nil && retErr == nil {
			retErr = cerr
		}
	}()
	if w.written != w.size {
		return storage.ErrIncompleteWrite
	}
	return nil
}
