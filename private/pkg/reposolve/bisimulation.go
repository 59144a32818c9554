package reposolve

import (
	"sort"
	"strconv"
	"strings"
)

// DeduplicateRepo computes the coarsest bisimulation over cfg's
// repositories (spec.md §4.5): two repositories are equivalent iff they
// have the same content id and their bindings map every local name to
// equivalent repositories. Grounded on the partition-refinement fixpoint
// technique used for DFA state minimisation in
// _examples/original_source/src/utils/automata/dfa_minimizer.hpp, adapted
// here from transition-labelled automaton states to binding-labelled
// repository nodes.
//
// The returned map sends every repository name to its class's canonical
// representative: the lexicographically smallest name among those
// sharing its equivalence class.
func DeduplicateRepo(cfg *Config) (map[string]string, error) {
	names := make([]string, 0, len(cfg.Repositories))
	for name := range cfg.Repositories {
		names = append(names, name)
	}
	sort.Strings(names)

	contentID := make(map[string]string, len(names))
	for _, name := range names {
		id, err := cfg.Repositories[name].contentID()
		if err != nil {
			return nil, err
		}
		contentID[name] = id
	}

	// Initial partition: bucket by content id alone.
	class := make(map[string]int, len(names))
	{
		seen := make(map[string]int)
		for _, name := range names {
			id := contentID[name]
			c, ok := seen[id]
			if !ok {
				c = len(seen)
				seen[id] = c
			}
			class[name] = c
		}
	}

	// Iteratively refine: two repositories in the same class split apart
	// as soon as some binding symbol leads to successors in different
	// classes. Fixpoint is reached in at most len(names) rounds.
	for round := 0; round < len(names)+1; round++ {
		signature := make(map[string]string, len(names))
		for _, name := range names {
			signature[name] = nodeSignature(cfg, class, name)
		}

		newClass := make(map[string]int, len(names))
		seen := make(map[string]int)
		changed := false
		for _, name := range names {
			sig := signature[name]
			c, ok := seen[sig]
			if !ok {
				c = len(seen)
				seen[sig] = c
			}
			newClass[name] = c
			if newClass[name] != class[name] {
				changed = true
			}
		}
		class = newClass
		if !changed {
			break
		}
	}

	// Canonical representative per final class: lexicographically
	// smallest name (names is already sorted, so first-seen wins).
	repByClass := make(map[int]string)
	for _, name := range names {
		c := class[name]
		if _, ok := repByClass[c]; !ok {
			repByClass[c] = name
		}
	}

	canon := make(map[string]string, len(names))
	for _, name := range names {
		canon[name] = repByClass[class[name]]
	}
	return canon, nil
}

// nodeSignature renders a repository's current refinement signature: its
// own class tag plus the sorted (binding symbol, successor class) pairs
// reachable from it. Two repositories with an identical signature are
// indistinguishable by one more round of observation and can merge.
func nodeSignature(cfg *Config, class map[string]int, name string) string {
	repo := cfg.Repositories[name]
	symbols := repo.sortedBindingNames()

	pairs := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		target := repo.Bindings[sym]
		pairs = append(pairs, sym+"="+strconv.Itoa(class[target]))
	}
	var b strings.Builder
	b.WriteString(strconv.Itoa(class[name]))
	b.WriteByte('|')
	b.WriteString(strings.Join(pairs, ","))
	return b.String()
}
