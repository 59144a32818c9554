// Package justmrcli implements spec.md §6's CLI surface: the
// setup/setup-env/fetch/update/do subcommands and their exit codes.
//
// Grounded on original_source/src/other_tools/just_mr/cli.hpp (subcommand
// set, --retries/--retry-initial/--retry-max flags) for the command shape
// and exit-code table, and on the teacher's internal/pkg/app/appcmd
// convention of threading a logger and explicit dependencies into command
// construction rather than reaching for package-level globals — rendered
// directly against spf13/cobra + spf13/pflag here rather than through
// appcmd's now-deleted app.Container wrapper (DESIGN.md's final trim
// pass), since this module has no other use for that abstraction.
package justmrcli

import "errors"

// ExitCode is one of spec.md §6's documented process exit codes.
type ExitCode int

const (
	// ExitSuccess is returned when a subcommand completes normally.
	ExitSuccess ExitCode = 0
	// ExitExecFailure is returned when `do` execs a downstream tool that
	// itself exits non-zero.
	ExitExecFailure ExitCode = 64
	// ExitGeneric covers failures with no more specific code below.
	ExitGeneric ExitCode = 65
	// ExitUnknownSubcommand is returned for an unrecognised subcommand.
	ExitUnknownSubcommand ExitCode = 66
	// ExitCLArgs is returned for malformed command-line arguments.
	ExitCLArgs ExitCode = 67
	// ExitConfig is returned for a malformed or invalid configuration.
	ExitConfig ExitCode = 68
	// ExitFetchFailure is returned when `fetch` cannot retrieve an archive.
	ExitFetchFailure ExitCode = 69
	// ExitUpdateFailure is returned when `update` cannot rewrite a commit.
	ExitUpdateFailure ExitCode = 70
	// ExitSetupFailure is returned when `setup`/`setup-env` cannot resolve
	// a repository configuration.
	ExitSetupFailure ExitCode = 71
	// ExitBuiltinError is returned for an internal/programming-error-level
	// failure in the tool itself.
	ExitBuiltinError ExitCode = 72
)

// CommandError pairs an error with the exit code it should produce,
// letting each subcommand's Run classify its own failures (spec.md §6's
// per-subcommand exit code column) without a central dispatcher having to
// guess from the error's type.
type CommandError struct {
	Code ExitCode
	Err  error
}

func (e *CommandError) Error() string { return e.Err.Error() }
func (e *CommandError) Unwrap() error { return e.Err }

// NewCommandError wraps err with code.
func NewCommandError(code ExitCode, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Code: code, Err: err}
}

// CodeOf returns ExitSuccess for a nil err, the CommandError code if err
// wraps a CommandError, and ExitGeneric for any other error.
func CodeOf(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}
	var cerr *CommandError
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return ExitGeneric
}
