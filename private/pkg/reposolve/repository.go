// Package reposolve implements the multi-repository resolver (C5 in
// SPEC_FULL.md): bisimulation-based repository canonicalisation,
// repository-key computation, and precomputed-root evaluation.
package reposolve

import (
	"encoding/json"
	"sort"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/digest"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
)

// Roots are the four workspace-relative roots a repository configuration
// names (spec.md §3's "Repository configuration"). Each is an artifact
// id; "" means the root is not content-fixed yet (it names an implicit
// precomputed root awaiting evaluation).
type Roots struct {
	Workspace  string
	Target     string
	Rule       string
	Expression string
}

// FileNames are the three target/rule/expression file names a repository
// configuration carries.
type FileNames struct {
	Targets     string
	Rules       string
	Expressions string
}

// Repository is one entry of a repository configuration: its roots, file
// names, and local-name -> global-name bindings.
//
// Invariant (spec.md §3): every Bindings value is either a key of the
// enclosing Config.Repositories map, or names an implicit root (handled
// by PrecomputedRoot) that can be evaluated later.
type Repository struct {
	Roots     Roots
	FileNames FileNames
	Bindings  map[string]string // local name -> global repository name
	// PrecomputedRoot is set when Roots.Workspace is not yet content-fixed
	// and must be evaluated first (spec.md §4.5).
	PrecomputedRoot *PrecomputedRoot
}

// ContentFixed reports whether r's content is already known (its
// workspace root does not depend on an unevaluated PrecomputedRoot).
func (r *Repository) ContentFixed() bool {
	return r.PrecomputedRoot == nil
}

// Config is a full repository configuration: a mapping from repository
// name to Repository (spec.md §3).
type Config struct {
	Repositories map[string]*Repository
}

// baseContentWire mirrors BaseContentDescription's JSON shape: the four
// roots plus the three file-name fields, nothing else — bindings are
// intentionally excluded, since two repositories with identical content
// but differently-named bindings must still compare equal at this layer
// (the alphabet/transition structure is compared separately by the
// bisimulation in bisimulation.go).
type baseContentWire struct {
	WorkspaceRoot  string `json:"workspace_root"`
	TargetRoot     string `json:"target_root"`
	RuleRoot       string `json:"rule_root"`
	ExpressionRoot string `json:"expression_root"`
	TargetFile     string `json:"target_file_name"`
	RuleFile       string `json:"rule_file_name"`
	ExpressionFile string `json:"expression_file_name"`
}

// BaseContentDescription returns r's canonical JSON content description:
// the four roots plus the three file-name fields (spec.md §4.5).
func (r *Repository) BaseContentDescription() ([]byte, error) {
	return json.Marshal(baseContentWire{
		WorkspaceRoot:  r.Roots.Workspace,
		TargetRoot:     r.Roots.Target,
		RuleRoot:       r.Roots.Rule,
		ExpressionRoot: r.Roots.Expression,
		TargetFile:     r.FileNames.Targets,
		RuleFile:       r.FileNames.Rules,
		ExpressionFile: r.FileNames.Expressions,
	})
}

// contentID returns the compatible-hash digest of r's BaseContentDescription.
func (r *Repository) contentID() (string, error) {
	data, err := r.BaseContentDescription()
	if err != nil {
		return "", err
	}
	dig, err := digest.HashCompatible(data)
	if err != nil {
		return "", err
	}
	return dig.Hex(), nil
}

// sortedBindingNames returns r's binding (alphabet) symbols in sorted
// order, used both as the bisimulation bucket key and for deterministic
// graph serialisation.
func (r *Repository) sortedBindingNames() []string {
	names := make([]string, 0, len(r.Bindings))
	for name := range r.Bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ErrNotContentFixed is returned by RepositoryKey when some repository of
// the configuration is not content-fixed (it depends on an unevaluated
// PrecomputedRoot); the repository key is then undefined per spec.md §4.5.
// Every repository in the configuration is checked, including ones that
// rootName does not reach.
var ErrNotContentFixed = errs.New(errs.KindNotFound, "reposolve: repository graph is not content-fixed")

// RepositoryKey returns the digest of the canonical, bisimulation-reduced
// dependency graph rooted at rootName (spec.md §4.5's "unknown" case
// reported as ErrNotContentFixed).
func RepositoryKey(cfg *Config, rootName string) (string, error) {
	for _, repo := range cfg.Repositories {
		if !repo.ContentFixed() {
			return "", ErrNotContentFixed
		}
	}
	canon, err := DeduplicateRepo(cfg)
	if err != nil {
		return "", err
	}
	graphJSON, err := BuildGraphForRepository(cfg, canon, rootName)
	if err != nil {
		return "", err
	}
	dig, err := digest.HashCompatible(graphJSON)
	if err != nil {
		return "", err
	}
	return dig.Hex(), nil
}
