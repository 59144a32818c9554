package artifact_test

import (
	"testing"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/artifact"
	"github.com/stretchr/testify/assert"
)

func TestObjectTypeIsTree(t *testing.T) {
	t.Parallel()
	assert.True(t, artifact.ObjectTypeTree.IsTree())
	assert.False(t, artifact.ObjectTypeFile.IsTree())
	assert.False(t, artifact.ObjectTypeExecutable.IsTree())
	assert.False(t, artifact.ObjectTypeSymlink.IsTree())
}

func TestObjectTypeStringRoundTrip(t *testing.T) {
	t.Parallel()
	for _, ot := range []artifact.ObjectType{
		artifact.ObjectTypeFile,
		artifact.ObjectTypeExecutable,
		artifact.ObjectTypeSymlink,
		artifact.ObjectTypeTree,
	} {
		assert.Len(t, ot.String(), 1)
	}
}
