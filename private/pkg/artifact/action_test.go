package artifact_test

import (
	"testing"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalActionHashStableAndOrderSensitive(t *testing.T) {
	t.Parallel()
	h1, err := artifact.CanonicalActionHash(
		[]string{"out"}, nil, []string{"sh", "-c", "true"},
		map[string]string{"A": "1"}, "", false, 1.0, nil, map[string]string{"in": "id1"},
	)
	require.NoError(t, err)
	h2, err := artifact.CanonicalActionHash(
		[]string{"out"}, nil, []string{"sh", "-c", "true"},
		map[string]string{"A": "1"}, "", false, 1.0, nil, map[string]string{"in": "id1"},
	)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	h3, err := artifact.CanonicalActionHash(
		[]string{"out"}, nil, []string{"sh", "-c", "false"},
		map[string]string{"A": "1"}, "", false, 1.0, nil, map[string]string{"in": "id1"},
	)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	// no_cache flips "Y"/"N" into the hash.
	h4, err := artifact.CanonicalActionHash(
		[]string{"out"}, nil, []string{"sh", "-c", "true"},
		map[string]string{"A": "1"}, "", true, 1.0, nil, map[string]string{"in": "id1"},
	)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h4)

	// Changing timeout_scale changes the id.
	h5, err := artifact.CanonicalActionHash(
		[]string{"out"}, nil, []string{"sh", "-c", "true"},
		map[string]string{"A": "1"}, "", false, 2.0, nil, map[string]string{"in": "id1"},
	)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h5)
}

func TestNewActionDescriptionRejectsEmptyCommand(t *testing.T) {
	t.Parallel()
	_, err := artifact.NewActionDescription(
		[]string{"out"}, nil, nil, nil, "", false, 0, nil, nil,
	)
	assert.Error(t, err)
}

func TestNewActionDescriptionRejectsEmptyOutputs(t *testing.T) {
	t.Parallel()
	_, err := artifact.NewActionDescription(
		nil, nil, []string{"true"}, nil, "", false, 0, nil, nil,
	)
	assert.Error(t, err)
}

func TestNewActionDescriptionRejectsOverlappingOutputs(t *testing.T) {
	t.Parallel()
	_, err := artifact.NewActionDescription(
		[]string{"a"}, []string{"a"}, []string{"true"}, nil, "", false, 0, nil, nil,
	)
	assert.Error(t, err)
}

func TestNewActionDescriptionSetsID(t *testing.T) {
	t.Parallel()
	ad, err := artifact.NewActionDescription(
		[]string{"out"}, nil, []string{"sh", "-c", "true"}, nil, "", false, 1.0, nil, nil,
	)
	require.NoError(t, err)
	assert.NotEmpty(t, ad.Act.ID())
}
