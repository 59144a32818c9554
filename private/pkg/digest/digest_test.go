// Making sure ParseError works outside of the digest package.
package digest_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForContent(t *testing.T) {
	t.Parallel()
	d, err := digest.ForContent(digest.TypeCompatible, bytes.NewBufferString("some content"))
	require.NoError(t, err)
	assert.Equal(t, digest.TypeCompatible, d.Type())
	assert.NotEmpty(t, d.Hex())

	d, err = digest.ForContent(digest.TypeNative, strings.NewReader("some content"))
	require.NoError(t, err)
	assert.Equal(t, digest.TypeNative, d.Type())
	assert.NotEmpty(t, d.Hex())

	expectedErr := errors.New("testing error")
	d, err = digest.ForContent(digest.TypeCompatible, iotest.ErrReader(expectedErr))
	assert.ErrorIs(t, err, expectedErr)
	assert.Nil(t, d)
}

func TestEmptyBlobIdentity(t *testing.T) {
	t.Parallel()
	// §8 end-to-end scenario 2.
	assert.Equal(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", digest.EmptyBlobHex(digest.TypeNative))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", digest.EmptyBlobHex(digest.TypeCompatible))
}

func TestDigestEqual(t *testing.T) {
	t.Parallel()
	content := "one line\nanother line\nyet another one\n"
	d1, err := digest.ForContent(digest.TypeCompatible, strings.NewReader(content))
	require.NoError(t, err)
	d2, err := digest.ForContent(digest.TypeCompatible, strings.NewReader(content))
	require.NoError(t, err)
	d3, err := digest.ForContent(digest.TypeCompatible, strings.NewReader(content+"foo"))
	require.NoError(t, err)
	d4, err := digest.ForContent(digest.TypeNative, strings.NewReader(content))
	require.NoError(t, err)

	assert.True(t, digest.Equal(d1, d2))
	assert.False(t, digest.Equal(d1, d3))
	// Same hex length is possible in principle; different Type must never
	// compare equal regardless of hex value.
	assert.False(t, digest.Equal(d1, d4))
}

func TestIsTreeOnlyValidForNative(t *testing.T) {
	t.Parallel()
	_, err := digest.New(digest.TypeCompatible, strings.Repeat("a", 64), 0, true)
	assert.Error(t, err)
	_, err = digest.New(digest.TypeNative, strings.Repeat("a", 40), 0, true)
	assert.NoError(t, err)
}

func TestParseError(t *testing.T) {
	t.Parallel()
	testParse(t, "", true)
	testParse(t, "foo", true)
	testParse(t, "sha256:_", true)
	testParse(t, "md5:"+strings.Repeat("a", 32), true)
	validDigest, err := digest.ForContent(digest.TypeCompatible, bytes.NewBuffer(nil))
	require.NoError(t, err)
	testParse(t, validDigest.String(), false)
}

func testParse(t *testing.T, s string, expectErr bool) {
	t.Helper()
	_, err := digest.Parse(s)
	if !expectErr {
		assert.NoError(t, err)
		return
	}
	require.Error(t, err)
	parseErr := &digest.ParseError{}
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, s, parseErr.Input())
}
