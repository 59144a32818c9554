package artifact_test

import (
	"testing"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/artifact"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRoundTrip(t *testing.T) {
	t.Parallel()
	d := artifact.NewLocal("src/foo.c", "")
	data, err := d.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"LOCAL","data":{"path":"src/foo.c","repository":""}}`, string(data))

	parsed, err := artifact.FromJSON(digest.TypeCompatible, data)
	require.NoError(t, err)
	path, repo, ok := parsed.Local()
	require.True(t, ok)
	assert.Equal(t, "src/foo.c", path)
	assert.Equal(t, "", repo)
}

func TestKnownRoundTrip(t *testing.T) {
	t.Parallel()
	dig, err := digest.HashBlob([]byte("hello"))
	require.NoError(t, err)
	d := artifact.NewKnown(dig, artifact.ObjectTypeFile, "")
	data, err := d.ToJSON()
	require.NoError(t, err)

	parsed, err := artifact.FromJSON(digest.TypeNative, data)
	require.NoError(t, err)
	gotDigest, gotType, _, ok := parsed.Known()
	require.True(t, ok)
	assert.True(t, digest.Equal(dig, gotDigest))
	assert.Equal(t, artifact.ObjectTypeFile, gotType)
}

func TestKnownIDIgnoresRepository(t *testing.T) {
	t.Parallel()
	dig, err := digest.HashBlob([]byte("hello"))
	require.NoError(t, err)
	a := artifact.NewKnown(dig, artifact.ObjectTypeFile, "")
	b := artifact.NewKnown(dig, artifact.ObjectTypeFile, "some/repo")
	idA, err := a.ID()
	require.NoError(t, err)
	idB, err := b.ID()
	require.NoError(t, err)
	assert.Equal(t, idA, idB, "repository is provenance only, not part of a KNOWN artifact's identity")
}

func TestActionAndTreeRoundTrip(t *testing.T) {
	t.Parallel()
	a := artifact.NewAction("abc123", "out/bin")
	data, err := a.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ACTION","data":{"id":"abc123","path":"out/bin"}}`, string(data))

	tr := artifact.NewTree("def456")
	data, err = tr.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"TREE","data":{"id":"def456"}}`, string(data))
}

func TestIDStableAndDistinguishesVariants(t *testing.T) {
	t.Parallel()
	a := artifact.NewLocal("same/path", "")
	b := artifact.NewLocal("same/path", "")
	idA, err := a.ID()
	require.NoError(t, err)
	idB, err := b.ID()
	require.NoError(t, err)
	assert.Equal(t, idA, idB)
	assert.True(t, artifact.Equal(a, b))

	c := artifact.NewAction("same/path", "")
	assert.False(t, artifact.Equal(a, c))
}

func TestFromJSONRejectsUnknownType(t *testing.T) {
	t.Parallel()
	_, err := artifact.FromJSON(digest.TypeCompatible, []byte(`{"type":"BOGUS","data":{}}`))
	assert.Error(t, err)
}
