package justmrcli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/just-buildsystem/justbuild-sub005/private/justmr/justmrconfig"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
)

func newFetchCommand(deps *Deps, configPath *string) *cobra.Command {
	var distdir string
	cmd := &cobra.Command{
		Use:   "fetch [repositories...]",
		Short: "Download archives to a distdir",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), deps, *configPath, distdir, args)
		},
	}
	cmd.Flags().StringVar(&distdir, "distdir", ".distfiles", "directory archives are fetched into")
	return cmd
}

func runFetch(ctx context.Context, deps *Deps, configPath, distdir string, repoNames []string) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // configPath is an operator-supplied CLI flag
	if err != nil {
		return NewCommandError(ExitConfig, errs.Newf(errs.KindConfig, "justmrcli: reading configuration: %v", err))
	}
	doc, err := justmrconfig.Parse(data)
	if err != nil {
		return NewCommandError(ExitConfig, err)
	}
	if deps.Fetcher == nil {
		return NewCommandError(ExitBuiltinError, errs.New(errs.KindInternal, "justmrcli: no fetcher configured"))
	}

	names := repoNames
	if len(names) == 0 {
		names = doc.SortedRepositoryNames()
	}
	for _, name := range names {
		entry, ok := doc.Repositories[name]
		if !ok {
			return NewCommandError(ExitCLArgs, errs.Newf(errs.KindConfig, "justmrcli: no repository named %q", name))
		}
		if err := deps.Fetcher.FetchToDistdir(ctx, name, &entry.Repository, distdir); err != nil {
			return NewCommandError(ExitFetchFailure, errs.Newf(errs.KindNotFound, "justmrcli: fetching %q: %v", name, err))
		}
	}
	return nil
}
