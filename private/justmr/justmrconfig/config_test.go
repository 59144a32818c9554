package justmrconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
  "repositories": {
    "main": {
      "repository": {"type": "file", "path": "."},
      "bindings": {"lib": "lib"}
    },
    "lib": {
      "repository": {"type": "git", "repository": "https://example.com/lib.git", "branch": "main", "commit": "deadbeef"}
    },
    "generated": {
      "repository": {"type": "computed", "repo": "lib", "target_module": "", "target_name": "out"}
    }
  }
}`

func TestParseValidConfig(t *testing.T) {
	t.Parallel()
	doc, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Len(t, doc.Repositories, 3)
	assert.Equal(t, RepoTypeGit, doc.Repositories["lib"].Repository.Type)
	assert.Equal(t, []string{"generated", "lib", "main"}, doc.SortedRepositoryNames())
}

func TestParseRejectsUnknownBinding(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte(`{"repositories": {"main": {"repository": {"type": "file", "path": "."}, "bindings": {"lib": "nonexistent"}}}}`))
	require.Error(t, err)
}

func TestParseRejectsMissingRepositoriesKey(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte(`{}`))
	require.Error(t, err)
}

type fakeRootResolver struct{}

func (fakeRootResolver) ResolveWorkspaceRoot(repoName string, spec *RepositorySpec) (string, error) {
	return "resolved:" + repoName, nil
}

func TestToResolverConfigLeavesComputedRootUnresolved(t *testing.T) {
	t.Parallel()
	doc, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	cfg, err := doc.ToResolverConfig(fakeRootResolver{})
	require.NoError(t, err)

	main := cfg.Repositories["main"]
	require.NotNil(t, main)
	assert.Equal(t, "resolved:main", main.Roots.Workspace)
	assert.True(t, main.ContentFixed())

	generated := cfg.Repositories["generated"]
	require.NotNil(t, generated)
	assert.False(t, generated.ContentFixed())
	assert.NotNil(t, generated.PrecomputedRoot)
}

func TestMergeRCPrecedence(t *testing.T) {
	t.Parallel()
	home := &RCFile{DefaultConfigFile: "home.json", Distdirs: []string{"/home/distdir"}}
	repo := &RCFile{DefaultConfigFile: "repo.json", Distdirs: []string{"/repo/distdir"}}

	merged := MergeRC(home, repo, map[string]string{"lib": "override"})
	assert.Equal(t, "repo.json", merged.DefaultConfigFile, "repo rc must win over home rc")
	assert.Equal(t, []string{"/home/distdir", "/repo/distdir"}, merged.Distdirs)
	assert.Equal(t, "override", merged.Overrides["lib"])
}

func TestMergeRCWithNilLayers(t *testing.T) {
	t.Parallel()
	merged := MergeRC(nil, nil, map[string]string{"a": "b"})
	assert.Equal(t, "b", merged.Overrides["a"])
}
