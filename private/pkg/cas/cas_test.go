package cas

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/artifact"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/digest"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/gitobj"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(dir, digest.TypeNative)
	require.NoError(t, err)
	return store
}

func TestStoreWriteThenGet(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	dig, err := store.WriteBlob(ctx, []byte("hello world"))
	require.NoError(t, err)

	ok, err := store.Has(ctx, dig)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.Get(ctx, dig)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), got)
}

func TestStoreWriteBlobIdempotent(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	d1, err := store.WriteBlob(ctx, []byte("same content"))
	require.NoError(t, err)
	d2, err := store.WriteBlob(ctx, []byte("same content"))
	require.NoError(t, err)
	assert.True(t, digest.Equal(d1, d2))
}

func TestStoreGetFallsThroughToGitODB(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	odb := gitobj.NewFakeODB()
	hex, err := odb.WriteBlob(ctx, []byte("from the odb"))
	require.NoError(t, err)
	repo := gitobj.NewGitRepo(gitobj.ModeFake, odb, nil)
	store.odb = repo

	dig, err := digest.New(digest.TypeNative, hex, int64(len("from the odb")), false)
	require.NoError(t, err)

	ok, err := store.Has(ctx, dig)
	require.NoError(t, err)
	assert.False(t, ok, "must not yet be in local CAS before the ODB fallback runs")

	got, err := store.Get(ctx, dig)
	require.NoError(t, err)
	assert.Equal(t, []byte("from the odb"), got)

	ok, err = store.Has(ctx, dig)
	require.NoError(t, err)
	assert.True(t, ok, "ODB hit must be copied up into local CAS")
}

func TestStoreGetMissingEverywhere(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	dig, err := digest.New(digest.TypeNative, "0000000000000000000000000000000000000000", 0, false)
	require.NoError(t, err)

	_, err = store.Get(ctx, dig)
	require.Error(t, err)
}

func TestBuildTreeRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "foo"), []byte("foo content"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "bar"), []byte("bar content"), 0o644))

	dig, err := store.BuildTree(ctx, root)
	require.NoError(t, err)
	assert.True(t, dig.IsTree())

	dig2, err := store.BuildTree(ctx, root)
	require.NoError(t, err)
	assert.True(t, digest.Equal(dig, dig2), "identical directory contents must hash identically")
}

func TestEmptyDirTreeMatchesEmptyGitTree(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	root := t.TempDir()
	dig, err := store.BuildTree(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904", dig.Hex())
}

func TestRehasherCachesAssociation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	odb := gitobj.NewFakeODB()
	blobHex, err := odb.WriteBlob(ctx, []byte("payload"))
	require.NoError(t, err)
	treeHex, err := odb.WriteTree(ctx, []gitobj.Entry{{Name: "file", Type: artifact.ObjectTypeFile, Hash: blobHex}})
	require.NoError(t, err)
	repo := gitobj.NewGitRepo(gitobj.ModeFake, odb, nil)

	buildRoot := t.TempDir()
	rehasher, err := NewRehasher(store, repo, buildRoot)
	require.NoError(t, err)

	d1, err := rehasher.Compatible(ctx, treeHex)
	require.NoError(t, err)
	assert.Equal(t, digest.TypeCompatible, d1.Type())

	// A second Rehasher over the same build root must load the persisted
	// association rather than recomputing it.
	rehasher2, err := NewRehasher(store, repo, buildRoot)
	require.NoError(t, err)
	d2, err := rehasher2.Compatible(ctx, treeHex)
	require.NoError(t, err)
	assert.True(t, digest.Equal(d1, d2))
}
