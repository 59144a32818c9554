package reposolve

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
)

// repoGraphEntry is the JSON shape of one node of the serialised,
// canonicalised repository graph (spec.md §4.5): a content description
// plus the local-name -> node-index bindings, both already reduced to
// canonical representatives.
type repoGraphEntry struct {
	Content  baseContentWire `json:"repository"`
	Bindings map[string]int  `json:"bindings"`
}

// BuildGraphForRepository performs a deterministic DFS from rootName over
// cfg (using canon, the bisimulation-reduced name mapping from
// DeduplicateRepo) and returns the canonical JSON serialisation of the
// resulting graph: a map from traversal index (as a decimal string key,
// for stable JSON ordering) to that repository's content plus its
// bindings resolved to indices of other nodes in the same graph.
//
// Grounded on depgraph's DFS traversal shape, applied here to assign
// stable small-integer node identities instead of detecting cycles.
func BuildGraphForRepository(cfg *Config, canon map[string]string, rootName string) ([]byte, error) {
	if _, ok := cfg.Repositories[rootName]; !ok {
		return nil, errs.Newf(errs.KindNotFound, "reposolve: unknown repository %q", rootName)
	}

	indexOf := make(map[string]int) // canonical name -> traversal index
	var order []string

	var visit func(canonName string) error
	visit = func(canonName string) error {
		if _, ok := indexOf[canonName]; ok {
			return nil
		}
		indexOf[canonName] = len(order)
		order = append(order, canonName)

		repo := cfg.Repositories[canonName]
		targets := make([]string, 0, len(repo.Bindings))
		for _, target := range repo.Bindings {
			targets = append(targets, canon[target])
		}
		sort.Strings(targets)
		for _, target := range targets {
			if err := visit(target); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(canon[rootName]); err != nil {
		return nil, err
	}

	entries := make(map[string]repoGraphEntry, len(order))
	for idx, canonName := range order {
		repo := cfg.Repositories[canonName]
		symbolByIndex := make(map[string]int, len(repo.Bindings))
		for sym, target := range repo.Bindings {
			symbolByIndex[sym] = indexOf[canon[target]]
		}

		entries[decimalKey(idx)] = repoGraphEntry{
			Content:  contentWire(repo),
			Bindings: symbolByIndex,
		}
	}

	return json.Marshal(entries)
}

func contentWire(r *Repository) baseContentWire {
	return baseContentWire{
		WorkspaceRoot:  r.Roots.Workspace,
		TargetRoot:     r.Roots.Target,
		RuleRoot:       r.Roots.Rule,
		ExpressionRoot: r.Roots.Expression,
		TargetFile:     r.FileNames.Targets,
		RuleFile:       r.FileNames.Rules,
		ExpressionFile: r.FileNames.Expressions,
	}
}

// decimalKey zero-pads idx so lexicographic and numeric JSON-key order
// coincide, matching the positional-key convention artifact.TreeOverlay
// already uses for its inputs map.
func decimalKey(idx int) string {
	return fmt.Sprintf("%010d", idx)
}
