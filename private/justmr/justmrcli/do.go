package justmrcli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/just-buildsystem/justbuild-sub005/private/justmr/justmrconfig"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
)

// knownSubcommands are the downstream build tool's own subcommands; `do
// <subcommand>` is equivalent to invoking that subcommand directly
// (spec.md §6: "do <args> / known-subcommand").
var knownSubcommands = map[string]bool{
	"build": true, "test": true, "install": true, "run": true, "analyse": true,
}

func newDoCommand(deps *Deps, configPath, mainRepo *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "do",
		Short: "Resolve the configuration and exec the downstream build tool",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDo(cmd, deps, *configPath, *mainRepo, args)
		},
	}
	// The downstream tool has its own flags, which this command does not
	// know about. Rather than require a "--" separator, whitelist unknown
	// flags so pflag leaves them in args instead of erroring; --config and
	// --main (inherited persistent flags) are still parsed normally
	// regardless of where they appear relative to "do".
	cmd.FParseErrWhitelist.UnknownFlags = true
	return cmd
}

// dispatchKnownSubcommand lets the root command accept a downstream
// subcommand name directly (spec.md §6), rewriting it to `do <name>
// ...rest` before the usual `do` path resolves the configuration.
func dispatchKnownSubcommand(args []string) ([]string, bool) {
	if len(args) == 0 || !knownSubcommands[args[0]] {
		return nil, false
	}
	rewritten := append([]string{"do"}, args...)
	return rewritten, true
}

func runDo(cmd *cobra.Command, deps *Deps, configPath, mainRepo string, toolArgs []string) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // configPath is an operator-supplied CLI flag
	if err != nil {
		return NewCommandError(ExitConfig, errs.Newf(errs.KindConfig, "justmrcli: reading configuration: %v", err))
	}
	doc, err := justmrconfig.Parse(data)
	if err != nil {
		return NewCommandError(ExitConfig, err)
	}
	if deps.Resolver == nil {
		return NewCommandError(ExitBuiltinError, errs.New(errs.KindInternal, "justmrcli: no root resolver configured"))
	}
	resolved, err := doc.ToResolverConfig(deps.Resolver)
	if err != nil {
		return NewCommandError(ExitSetupFailure, err)
	}
	if _, err := repositoryKeyOf(resolved, mainRepo); err != nil {
		return NewCommandError(ExitSetupFailure, err)
	}

	if deps.Launcher == nil {
		return NewCommandError(ExitBuiltinError, errs.New(errs.KindInternal, "justmrcli: no launcher configured"))
	}
	exitCode, err := deps.Launcher.Launch(cmd.Context(), toolArgs, os.Environ())
	if err != nil {
		return NewCommandError(ExitBuiltinError, err)
	}
	if exitCode != 0 {
		return NewCommandError(ExitExecFailure, errs.Newf(errs.KindInternal, "justmrcli: downstream tool exited with code %d", exitCode))
	}
	return nil
}
