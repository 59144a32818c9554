package justmrcli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/just-buildsystem/justbuild-sub005/private/justmr/justmrconfig"
)

// Deps bundles the external collaborators a justmr invocation needs:
// where to read/write, how to resolve workspace roots (git clone,
// archive fetch, ...; §1 external collaborators), and how to launch the
// downstream build tool for `do`.
type Deps struct {
	Logger   *zap.Logger
	Stdout   io.Writer
	Stderr   io.Writer
	Resolver justmrconfig.RootResolver
	Fetcher  Fetcher
	Updater  Updater
	Launcher Launcher
}

// Fetcher downloads one repository's distfile to distdir, per spec.md
// §6's `fetch` subcommand. Mirror selection policy lives outside this
// package (§1).
type Fetcher interface {
	FetchToDistdir(ctx context.Context, repoName string, spec *justmrconfig.RepositorySpec, distdir string) error
}

// Launcher execs the downstream build tool with a rewritten config, for
// `do`/known-subcommand dispatch. Grounded on original_source's
// just_mr.cpp execing `just` with an augmented argv.
type Launcher interface {
	Launch(ctx context.Context, toolArgs []string, env []string) (exitCode int, err error)
}

// NewRootCommand builds the "justmr" cobra command tree: setup,
// setup-env, fetch, update, do (spec.md §6).
func NewRootCommand(deps *Deps) *cobra.Command {
	var configPath string
	var mainRepo string

	root := &cobra.Command{
		Use:           "justmr",
		Short:         "Resolve and execute multi-repository justbuild configurations",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the repository configuration file")
	root.PersistentFlags().StringVar(&mainRepo, "main", "", "name of the main repository")

	root.AddCommand(newSetupCommand(deps, &configPath, &mainRepo, false))
	root.AddCommand(newSetupCommand(deps, &configPath, &mainRepo, true))
	root.AddCommand(newFetchCommand(deps, &configPath))
	root.AddCommand(newUpdateCommand(deps, &configPath))
	root.AddCommand(newDoCommand(deps, &configPath, &mainRepo))

	root.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return NewCommandError(ExitUnknownSubcommand, errUnknownSubcommand(args[0]))
	}
	return root
}

func errUnknownSubcommand(name string) error {
	return &unknownSubcommandError{name: name}
}

type unknownSubcommandError struct{ name string }

func (e *unknownSubcommandError) Error() string { return "unknown subcommand: " + e.name }

// Execute runs root against args and returns the process exit code
// spec.md §6 documents, logging any failure through deps.Logger.
//
// If args' first element names one of the downstream build tool's own
// subcommands, it is rewritten to `do <name> ...` first (spec.md §6:
// "do <args> / known-subcommand").
func Execute(ctx context.Context, deps *Deps, args []string) ExitCode {
	if rewritten, ok := dispatchKnownSubcommand(args); ok {
		args = rewritten
	}

	root := NewRootCommand(deps)
	root.SetArgs(args)
	root.SetOut(deps.Stdout)
	root.SetErr(deps.Stderr)
	root.SetContext(ctx)

	err := root.Execute()
	code := CodeOf(err)
	if err != nil {
		deps.Logger.Error("justmr: command failed", zap.Error(err), zap.Int("exit_code", int(code)))
	}
	return code
}
