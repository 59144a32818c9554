package justmrcli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/just-buildsystem/justbuild-sub005/private/justmr/justmrconfig"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/reposolve"
)

// resolvedRepoWire is one entry of the JSON document `setup`/`setup-env`
// write to stdout: the repository's resolved roots and file names,
// mirroring the shape of the input repository configuration (§6) but
// with every root now an already-resolved artifact id.
type resolvedRepoWire struct {
	WorkspaceRoot      string            `json:"workspace_root,omitempty"`
	TargetRoot         string            `json:"target_root"`
	RuleRoot           string            `json:"rule_root"`
	ExpressionRoot     string            `json:"expression_root"`
	TargetFileName     string            `json:"target_file_name"`
	RuleFileName       string            `json:"rule_file_name"`
	ExpressionFileName string            `json:"expression_file_name"`
	Bindings           map[string]string `json:"bindings,omitempty"`
}

type setupOutput struct {
	Repositories map[string]resolvedRepoWire `json:"repositories"`
	Main         string                      `json:"main,omitempty"`
}

func newSetupCommand(deps *Deps, configPath, mainRepo *string, envVariant bool) *cobra.Command {
	use := "setup"
	short := "Write a resolved multi-repository configuration to stdout"
	if envVariant {
		use = "setup-env"
		short = "Like setup, but does not bind the main repository's workspace root"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			main := *mainRepo
			if len(args) > 0 {
				main = args[0]
			}
			return runSetup(deps, *configPath, main, envVariant)
		},
	}
}

func runSetup(deps *Deps, configPath, mainRepo string, envVariant bool) error {
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

	out := setupOutput{Repositories: make(map[string]resolvedRepoWire, len(resolved.Repositories)), Main: mainRepo}
	for name, repo := range resolved.Repositories {
		wire := resolvedRepoWire{
			WorkspaceRoot:      repo.Roots.Workspace,
			TargetRoot:         repo.Roots.Target,
			RuleRoot:           repo.Roots.Rule,
			ExpressionRoot:     repo.Roots.Expression,
			TargetFileName:     repo.FileNames.Targets,
			RuleFileName:       repo.FileNames.Rules,
			ExpressionFileName: repo.FileNames.Expressions,
			Bindings:           repo.Bindings,
		}
		if envVariant && name == mainRepo {
			wire.WorkspaceRoot = ""
		}
		out.Repositories[name] = wire
	}

	enc := json.NewEncoder(deps.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return NewCommandError(ExitBuiltinError, err)
	}
	return nil
}

// repositoryKeyOf is a small helper `do` reuses to verify the resolved
// graph is content-fixed before exec-ing the downstream tool (spec.md
// §4.5: a repository key is undefined while any transitive repository is
// still an unresolved precomputed root).
func repositoryKeyOf(cfg *reposolve.Config, mainRepo string) (string, error) {
	return reposolve.RepositoryKey(cfg, mainRepo)
}
