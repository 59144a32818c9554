package targeteval

import (
	"context"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/normalpath"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/storage"
)

// BucketRootReader reads target files out of a per-repository
// storage.ReadBucket that already materialises the repository's
// workspace root (spec.md §4.7 step 2's common case).
type BucketRootReader struct {
	// Buckets maps repository name to its workspace root bucket.
	Buckets map[string]storage.ReadBucket
	// TargetFileNames maps repository name to its configured target file
	// name (reposolve.FileNames.Targets); repositories absent from this
	// map use the conventional name "TARGETS".
	TargetFileNames map[string]string
}

func (b *BucketRootReader) targetFileName(repo string) string {
	if name, ok := b.TargetFileNames[repo]; ok && name != "" {
		return name
	}
	return "TARGETS"
}

// ReadTargetFile implements RootReader.
func (b *BucketRootReader) ReadTargetFile(ctx context.Context, repo, module string) (map[string]TargetDescription, error) {
	bucket, ok := b.Buckets[repo]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "targeteval: no workspace root bucket for repository %q", repo)
	}
	path := normalpath.Join(module, b.targetFileName(repo))
	data, err := storage.ReadPath(ctx, bucket, path)
	if err != nil {
		if storage.IsNotExist(err) {
			return nil, errs.Newf(errs.KindNotFound, "targeteval: no target file at %s in repository %q: %v", path, repo, err)
		}
		return nil, err
	}
	return ParseTargetFile(data)
}

// ServeFallbackReader tries Primary first; if Primary reports the root
// is absent (KindNotFound), it asks Serve instead. This is the "absent
// root + serve endpoint" path of spec.md §4.7 step 2: an absent root has
// no local bucket to read, so Primary is expected to fail with
// errs.KindNotFound rather than panic or block.
type ServeFallbackReader struct {
	Primary RootReader
	Serve   RootReader
}

// ReadTargetFile implements RootReader.
func (f *ServeFallbackReader) ReadTargetFile(ctx context.Context, repo, module string) (map[string]TargetDescription, error) {
	if f.Primary != nil {
		targets, err := f.Primary.ReadTargetFile(ctx, repo, module)
		if err == nil {
			return targets, nil
		}
		if !errs.Is(err, errs.KindNotFound) || f.Serve == nil {
			return nil, err
		}
	}
	return f.Serve.ReadTargetFile(ctx, repo, module)
}
