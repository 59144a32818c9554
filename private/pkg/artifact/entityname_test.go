package artifact_test

import (
	"testing"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/artifact"
	"github.com/stretchr/testify/assert"
)

func TestNormalModuleName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "foo/bar", artifact.NormalModuleName("foo/bar/"))
	assert.Equal(t, "foo/bar", artifact.NormalModuleName("../../../foo/bar"))
	assert.Equal(t, "", artifact.NormalModuleName("/"))
	assert.Equal(t, "", artifact.NormalModuleName(""))
	assert.Equal(t, "", artifact.NormalModuleName("."))
	assert.Equal(t, "", artifact.NormalModuleName(".."))
}

func TestNormalModuleNameIsIdempotent(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"foo/bar/", "../../../foo/bar", "/", "", ".", "..", "a/b/../c"} {
		once := artifact.NormalModuleName(in)
		twice := artifact.NormalModuleName(once)
		assert.Equal(t, once, twice, "NormalModuleName(%q) not idempotent", in)
	}
}

func TestNamedTargetModuleIsNormalisedOnConstruction(t *testing.T) {
	t.Parallel()
	target := artifact.NewNamedTarget("", "foo/bar/", "baz", artifact.ReferenceTarget)
	assert.Equal(t, "foo/bar", target.Module)
}

func TestEntityNameJSONShape(t *testing.T) {
	t.Parallel()
	named := artifact.NewNamedEntity(artifact.NewNamedTarget("", "foo", "bar", artifact.ReferenceTarget))
	data, err := named.ToJSON()
	assert.NoError(t, err)
	assert.JSONEq(t, `["@", "", "foo", "bar"]`, string(data))

	fileRef := artifact.NewNamedEntity(artifact.NewNamedTarget("", "foo", "bar.txt", artifact.ReferenceFile))
	data, err = fileRef.ToJSON()
	assert.NoError(t, err)
	assert.JSONEq(t, `["@", "", "FILE", "foo", "bar.txt"]`, string(data))

	anon := artifact.NewAnonymousEntity(artifact.AnonymousTarget{RuleMapID: "r1", TargetNodeID: "t1"})
	data, err = anon.ToJSON()
	assert.NoError(t, err)
	assert.JSONEq(t, `["#", "r1", "t1"]`, string(data))
}

func TestIsDefinitionName(t *testing.T) {
	t.Parallel()
	target := artifact.NewNamedEntity(artifact.NewNamedTarget("", "foo", "bar", artifact.ReferenceTarget))
	assert.True(t, target.IsDefinitionName())

	fileRef := artifact.NewNamedEntity(artifact.NewNamedTarget("", "foo", "bar.txt", artifact.ReferenceFile))
	assert.False(t, fileRef.IsDefinitionName())

	anon := artifact.NewAnonymousEntity(artifact.AnonymousTarget{RuleMapID: "r1", TargetNodeID: "t1"})
	assert.True(t, anon.IsDefinitionName())
}
