package justmrcli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/just-buildsystem/justbuild-sub005/private/justmr/justmrconfig"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
)

// Updater resolves repoName's current upstream commit (an external
// collaborator: it shells out to `git ls-remote` or an equivalent).
// Grounded on original_source's just_mr_update.cpp `UpdateRepo` step.
type Updater interface {
	LatestCommit(repoName string, spec *justmrconfig.RepositorySpec) (commit string, err error)
}

func newUpdateCommand(deps *Deps, configPath *string) *cobra.Command {
	var retries, retryInitialMs, retryMaxMs int
	cmd := &cobra.Command{
		Use:   "update <repo>...",
		Short: "Rewrite the configuration's commit field for each named git repository",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(deps, *configPath, args)
		},
	}
	// The three retry flags are parsed and accepted, but nothing reads
	// their values: runUpdate calls Updater.LatestCommit once per
	// repository and does not retry a failed call.
	cmd.Flags().IntVar(&retries, "retries", 3, "maximum retry attempts (accepted; update does not retry)")
	cmd.Flags().IntVar(&retryInitialMs, "retry-initial", 100, "initial retry backoff, milliseconds (accepted; update does not retry)")
	cmd.Flags().IntVar(&retryMaxMs, "retry-max", 60000, "maximum retry backoff, milliseconds (accepted; update does not retry)")
	return cmd
}

func runUpdate(deps *Deps, configPath string, repoNames []string) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // configPath is an operator-supplied CLI flag
	if err != nil {
		return NewCommandError(ExitConfig, errs.Newf(errs.KindConfig, "justmrcli: reading configuration: %v", err))
	}
	doc, err := justmrconfig.Parse(data)
	if err != nil {
		return NewCommandError(ExitConfig, err)
	}
	if deps.Updater == nil {
		return NewCommandError(ExitBuiltinError, errs.New(errs.KindInternal, "justmrcli: no updater configured"))
	}

	for _, name := range repoNames {
		entry, ok := doc.Repositories[name]
		if !ok {
			return NewCommandError(ExitCLArgs, errs.Newf(errs.KindConfig, "justmrcli: no repository named %q", name))
		}
		if entry.Repository.Type != justmrconfig.RepoTypeGit {
			return NewCommandError(ExitUpdateFailure, errs.Newf(errs.KindConfig, "justmrcli: repository %q is not of type %q", name, justmrconfig.RepoTypeGit))
		}
		commit, err := deps.Updater.LatestCommit(name, &entry.Repository)
		if err != nil {
			return NewCommandError(ExitUpdateFailure, errs.Newf(errs.KindNotFound, "justmrcli: updating %q: %v", name, err))
		}
		entry.Repository.Commit = commit
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return NewCommandError(ExitBuiltinError, err)
	}
	_, err = deps.Stdout.Write(append(out, '\n'))
	return err
}
