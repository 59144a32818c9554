package reposolve_test

import (
	"testing"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/reposolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// leafRepo returns a content-fixed repository with no further bindings;
// identical roots/file-names every time, so two leaves built this way
// are bisimilar by construction.
func leafRepo() *reposolve.Repository {
	return &reposolve.Repository{
		Roots: reposolve.Roots{
			Workspace: "leaf-workspace-root",
			Target:    "leaf-target-root",
		},
		FileNames: reposolve.FileNames{
			Targets: "TARGETS",
			Rules:   "RULES",
		},
		Bindings: map[string]string{},
	}
}

func TestDeduplicateRepoCollapsesBisimilarLeaves(t *testing.T) {
	t.Parallel()
	cfg := &reposolve.Config{Repositories: map[string]*reposolve.Repository{
		"main": {
			Roots:     reposolve.Roots{Workspace: "main-root"},
			FileNames: reposolve.FileNames{Targets: "TARGETS", Rules: "RULES"},
			Bindings:  map[string]string{"dep": "a"},
		},
		// "a" and "b" have identical content and identical (empty)
		// binding structure: structurally bisimilar, differing only in
		// name.
		"a": leafRepo(),
		"b": leafRepo(),
	}}

	canon, err := reposolve.DeduplicateRepo(cfg)
	require.NoError(t, err)
	assert.Equal(t, canon["a"], canon["b"], "structurally bisimilar leaves must share a canonical representative")
	// The representative is the lexicographically smallest name sharing
	// the class (spec.md §4.5).
	assert.Equal(t, "a", canon["a"])
	// "main" is not bisimilar to either leaf (different content and
	// bindings) so it must keep its own class.
	assert.NotEqual(t, canon["main"], canon["a"])
}

func TestDeduplicateRepoDistinguishesDifferentBindingTargets(t *testing.T) {
	t.Parallel()
	cfg := &reposolve.Config{Repositories: map[string]*reposolve.Repository{
		"main": {
			Roots:     reposolve.Roots{Workspace: "main-root"},
			FileNames: reposolve.FileNames{Targets: "TARGETS", Rules: "RULES"},
			Bindings:  map[string]string{"dep": "a"},
		},
		"other": {
			Roots:     reposolve.Roots{Workspace: "main-root"},
			FileNames: reposolve.FileNames{Targets: "TARGETS", Rules: "RULES"},
			Bindings:  map[string]string{"dep": "b"},
		},
		"a": leafRepo(),
		// "b" has the same content as "a" but a different onward
		// binding, so it must NOT merge with "a".
		"b": func() *reposolve.Repository {
			r := leafRepo()
			r.Bindings = map[string]string{"extra": "c"}
			return r
		}(),
		"c": leafRepo(),
	}}

	canon, err := reposolve.DeduplicateRepo(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, canon["a"], canon["b"], "same content but different binding structure must not bisimulate")
	assert.NotEqual(t, canon["main"], canon["other"], "downstream inequivalence must propagate to the binding repositories")
}

func TestRepositoryKeyIsRenamingInvariant(t *testing.T) {
	t.Parallel()
	// mainA and mainB are structurally identical: same content, same
	// binding alphabet, and the targets they each bind ("a" and "b")
	// are themselves bisimilar leaves differing only by name.
	mkConfig := func() *reposolve.Config {
		return &reposolve.Config{Repositories: map[string]*reposolve.Repository{
			"mainA": {
				Roots:     reposolve.Roots{Workspace: "main-root"},
				FileNames: reposolve.FileNames{Targets: "TARGETS", Rules: "RULES"},
				Bindings:  map[string]string{"dep": "a"},
			},
			"mainB": {
				Roots:     reposolve.Roots{Workspace: "main-root"},
				FileNames: reposolve.FileNames{Targets: "TARGETS", Rules: "RULES"},
				Bindings:  map[string]string{"dep": "b"},
			},
			"a": leafRepo(),
			"b": leafRepo(),
		}}
	}

	keyA, err := reposolve.RepositoryKey(mkConfig(), "mainA")
	require.NoError(t, err)
	keyB, err := reposolve.RepositoryKey(mkConfig(), "mainB")
	require.NoError(t, err)
	assert.Equal(t, keyA, keyB, "two repositories equivalent up to renaming must produce the same repository key")
}

func TestRepositoryKeyRejectsNonContentFixedGraph(t *testing.T) {
	t.Parallel()
	cfg := &reposolve.Config{Repositories: map[string]*reposolve.Repository{
		"main": {
			Roots:     reposolve.Roots{Workspace: "main-root"},
			FileNames: reposolve.FileNames{Targets: "TARGETS", Rules: "RULES"},
			Bindings:  map[string]string{"dep": "pending"},
		},
		"pending": {
			Roots:           reposolve.Roots{}, // workspace root not yet evaluated
			FileNames:       reposolve.FileNames{Targets: "TARGETS", Rules: "RULES"},
			Bindings:        map[string]string{},
			PrecomputedRoot: reposolve.NewTreeStructureRoot("main"),
		},
	}}

	_, err := reposolve.RepositoryKey(cfg, "main")
	assert.ErrorIs(t, err, reposolve.ErrNotContentFixed)
}
