package justmrcli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/just-buildsystem/justbuild-sub005/private/justmr/justmrconfig"
)

const testConfig = `{
  "repositories": {
    "main": {
      "repository": {"type": "file", "path": "."},
      "bindings": {"lib": "lib"}
    },
    "lib": {
      "repository": {"type": "git", "repository": "https://example.com/lib.git", "commit": "oldcommit"}
    }
  }
}`

type fakeResolver struct{}

func (fakeResolver) ResolveWorkspaceRoot(repoName string, spec *justmrconfig.RepositorySpec) (string, error) {
	return "root:" + repoName, nil
}

type fakeFetcher struct{ fetched []string }

func (f *fakeFetcher) FetchToDistdir(_ context.Context, repoName string, _ *justmrconfig.RepositorySpec, _ string) error {
	f.fetched = append(f.fetched, repoName)
	return nil
}

type fakeUpdater struct{}

func (fakeUpdater) LatestCommit(repoName string, _ *justmrconfig.RepositorySpec) (string, error) {
	return "newcommit-" + repoName, nil
}

type fakeLauncher struct{ called bool }

func (f *fakeLauncher) Launch(_ context.Context, _ []string, _ []string) (int, error) {
	f.called = true
	return 0, nil
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repos.json")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))
	return path
}

func newTestDeps(stdout *bytes.Buffer) *Deps {
	return &Deps{
		Logger:   zap.NewNop(),
		Stdout:   stdout,
		Stderr:   stdout,
		Resolver: fakeResolver{},
		Fetcher:  &fakeFetcher{},
		Updater:  fakeUpdater{},
		Launcher: &fakeLauncher{},
	}
}

func TestSetupWritesResolvedConfig(t *testing.T) {
	t.Parallel()
	path := writeTestConfig(t)
	var stdout bytes.Buffer
	deps := newTestDeps(&stdout)

	code := Execute(context.Background(), deps, []string{"setup", "--config", path, "main"})
	require.Equal(t, ExitSuccess, code)

	var out setupOutput
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	assert.Equal(t, "root:main", out.Repositories["main"].WorkspaceRoot)
	assert.Equal(t, "root:lib", out.Repositories["lib"].WorkspaceRoot)
}

func TestSetupEnvSkipsMainWorkspaceRoot(t *testing.T) {
	t.Parallel()
	path := writeTestConfig(t)
	var stdout bytes.Buffer
	deps := newTestDeps(&stdout)

	code := Execute(context.Background(), deps, []string{"setup-env", "--config", path, "main"})
	require.Equal(t, ExitSuccess, code)

	var out setupOutput
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	assert.Empty(t, out.Repositories["main"].WorkspaceRoot)
	assert.Equal(t, "root:lib", out.Repositories["lib"].WorkspaceRoot)
}

func TestSetupFailsOnMissingConfig(t *testing.T) {
	t.Parallel()
	var stdout bytes.Buffer
	deps := newTestDeps(&stdout)

	code := Execute(context.Background(), deps, []string{"setup", "--config", "/nonexistent/path.json"})
	assert.Equal(t, ExitConfig, code)
}

func TestFetchCallsFetcherForEveryRepository(t *testing.T) {
	t.Parallel()
	path := writeTestConfig(t)
	var stdout bytes.Buffer
	fetcher := &fakeFetcher{}
	deps := newTestDeps(&stdout)
	deps.Fetcher = fetcher

	code := Execute(context.Background(), deps, []string{"fetch", "--config", path})
	require.Equal(t, ExitSuccess, code)
	assert.ElementsMatch(t, []string{"lib", "main"}, fetcher.fetched)
}

func TestFetchRejectsUnknownRepository(t *testing.T) {
	t.Parallel()
	path := writeTestConfig(t)
	var stdout bytes.Buffer
	deps := newTestDeps(&stdout)

	code := Execute(context.Background(), deps, []string{"fetch", "--config", path, "nonexistent"})
	assert.Equal(t, ExitCLArgs, code)
}

func TestUpdateRewritesCommit(t *testing.T) {
	t.Parallel()
	path := writeTestConfig(t)
	var stdout bytes.Buffer
	deps := newTestDeps(&stdout)

	code := Execute(context.Background(), deps, []string{"update", "--config", path, "lib"})
	require.Equal(t, ExitSuccess, code)

	var doc justmrconfig.Document
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &doc))
	assert.Equal(t, "newcommit-lib", doc.Repositories["lib"].Repository.Commit)
}

func TestUpdateRejectsNonGitRepository(t *testing.T) {
	t.Parallel()
	path := writeTestConfig(t)
	var stdout bytes.Buffer
	deps := newTestDeps(&stdout)

	code := Execute(context.Background(), deps, []string{"update", "--config", path, "main"})
	assert.Equal(t, ExitUpdateFailure, code)
}

func TestDoExecsLauncherOnSuccess(t *testing.T) {
	t.Parallel()
	path := writeTestConfig(t)
	var stdout bytes.Buffer
	launcher := &fakeLauncher{}
	deps := newTestDeps(&stdout)
	deps.Launcher = launcher

	code := Execute(context.Background(), deps, []string{"--config", path, "--main", "main", "do", "build"})
	require.Equal(t, ExitSuccess, code)
	assert.True(t, launcher.called)
}

func TestDoFailsWhenDownstreamToolExitsNonZero(t *testing.T) {
	t.Parallel()
	path := writeTestConfig(t)
	var stdout bytes.Buffer
	deps := newTestDeps(&stdout)
	deps.Launcher = launcherWithExit{code: 3}

	code := Execute(context.Background(), deps, []string{"--config", path, "--main", "main", "do"})
	assert.Equal(t, ExitExecFailure, code)
}

type launcherWithExit struct{ code int }

func (l launcherWithExit) Launch(_ context.Context, _ []string, _ []string) (int, error) {
	return l.code, nil
}

func TestUnknownSubcommandExitCode(t *testing.T) {
	t.Parallel()
	var stdout bytes.Buffer
	deps := newTestDeps(&stdout)

	code := Execute(context.Background(), deps, []string{"bogus-subcommand"})
	assert.Equal(t, ExitUnknownSubcommand, code)
}
