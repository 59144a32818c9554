// Package justmrconfig implements spec.md §6's repository configuration
// JSON model: parsing the on-disk "repositories" document, merging the
// rc-file layering original_source's just-mr adds (SPEC_FULL.md's
// supplemented features), and converting the parsed document into a
// private/pkg/reposolve.Config the resolver can canonicalise.
//
// Grounded on original_source/src/other_tools/just_mr/cli.hpp and rc.cpp
// for the rc merge order (home rc, repository rc, explicit overrides) and
// original_source/src/other_tools/just_mr/utils.hpp for the "repository"
// object's type tag set. Archive fetching and network mirror selection
// are external collaborators (spec.md §1); this package stops at
// recording what each repository type needs fetched, not fetching it.
package justmrconfig

import (
	"encoding/json"
	"sort"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/reposolve"
)

// RepoType is the repository "type" tag, spec.md §6.
type RepoType string

// The eight repository types spec.md §6 names.
const (
	RepoTypeGit           RepoType = "git"
	RepoTypeArchive       RepoType = "archive"
	RepoTypeZip           RepoType = "zip"
	RepoTypeFile          RepoType = "file"
	RepoTypeDistdir       RepoType = "distdir"
	RepoTypeGitTree       RepoType = "git tree"
	RepoTypeComputed      RepoType = "computed"
	RepoTypeTreeStructure RepoType = "tree structure"
)

// RepositorySpec is the "repository" object nested inside one
// repositories-map entry: a type tag plus its type-specific fields.
// Unused fields for a given Type are simply left at their zero value.
type RepositorySpec struct {
	Type RepoType `json:"type"`

	// git
	URL    string `json:"repository,omitempty"`
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
	Subdir string `json:"subdir,omitempty"`

	// archive / zip
	FetchURL string `json:"fetch,omitempty"`
	Sha256   string `json:"sha256,omitempty"`
	Sha512   string `json:"sha512,omitempty"`

	// file
	Path string `json:"path,omitempty"`

	// distdir
	Repositories []string `json:"repositories,omitempty"`

	// git tree (reuses Commit above for the pinned tree-ish)
	CmdURL string `json:"cmd,omitempty"`

	// computed / tree structure (both reference another repository by
	// name under the same "repo" wire field)
	ComputedRepo   string          `json:"repo,omitempty"`
	TargetModule   string          `json:"target_module,omitempty"`
	TargetName     string          `json:"target_name,omitempty"`
	ComputedConfig json.RawMessage `json:"config,omitempty"`
}

// Entry is one repositories-map value: spec.md §6's
// {repository, bindings, target_root, rule_root, expression_root,
// target_file_name, rule_file_name, expression_file_name}.
type Entry struct {
	Repository         RepositorySpec    `json:"repository"`
	Bindings           map[string]string `json:"bindings,omitempty"`
	TargetRoot         string            `json:"target_root,omitempty"`
	RuleRoot           string            `json:"rule_root,omitempty"`
	ExpressionRoot     string            `json:"expression_root,omitempty"`
	TargetFileName     string            `json:"target_file_name,omitempty"`
	RuleFileName       string            `json:"rule_file_name,omitempty"`
	ExpressionFileName string            `json:"expression_file_name,omitempty"`
}

// Document is the top-level configuration file: {"repositories": {...}}.
type Document struct {
	Repositories map[string]*Entry `json:"repositories"`
}

// Parse parses a configuration document, per spec.md §6.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errs.Newf(errs.KindConfig, "justmrconfig: malformed configuration: %v", err)
	}
	if doc.Repositories == nil {
		return nil, errs.New(errs.KindConfig, "justmrconfig: configuration has no \"repositories\" key")
	}
	for name, entry := range doc.Repositories {
		for local, bound := range entry.Bindings {
			if _, ok := doc.Repositories[bound]; !ok && !isImplicitRoot(entry, bound) {
				return nil, errs.Newf(errs.KindConfig,
					"justmrconfig: repository %q binds %q to unknown repository %q", name, local, bound)
			}
		}
	}
	return &doc, nil
}

// isImplicitRoot reports whether bound names a precomputed root this
// same entry evaluates later (spec.md §3's name-mapping invariant), not a
// sibling repository. Since computed/tree-structure roots are expressed
// as the referenced repository's own type, the only thing distinguishing
// "unknown binding" from "implicit root" here is that the entry's own
// Repository.Type names a precomputed root kind referencing itself.
func isImplicitRoot(entry *Entry, bound string) bool {
	switch entry.Repository.Type {
	case RepoTypeComputed:
		return entry.Repository.ComputedRepo == bound
	case RepoTypeTreeStructure:
		return entry.Repository.ComputedRepo == bound
	default:
		return false
	}
}

// ToResolverConfig converts doc into a reposolve.Config. roots resolves
// each non-precomputed repository's workspace/target/rule/expression
// roots to artifact ids; this is the seam where git-clone/archive-fetch
// results (external collaborators per §1) enter the engine. Repositories
// of type "computed" or "tree structure" are left with an unresolved
// PrecomputedRoot for reposolve to evaluate later.
func (d *Document) ToResolverConfig(roots RootResolver) (*reposolve.Config, error) {
	cfg := &reposolve.Config{Repositories: make(map[string]*reposolve.Repository, len(d.Repositories))}
	for name, entry := range d.Repositories {
		repo := &reposolve.Repository{
			Bindings: entry.Bindings,
			FileNames: reposolve.FileNames{
				Targets:     defaultString(entry.TargetFileName, "TARGETS"),
				Rules:       defaultString(entry.RuleFileName, "RULES"),
				Expressions: defaultString(entry.ExpressionFileName, "EXPRESSIONS"),
			},
		}
		switch entry.Repository.Type {
		case RepoTypeComputed:
			repo.PrecomputedRoot = reposolve.NewComputedRoot(
				entry.Repository.ComputedRepo, entry.Repository.TargetModule,
				entry.Repository.TargetName, string(entry.Repository.ComputedConfig))
		case RepoTypeTreeStructure:
			repo.PrecomputedRoot = reposolve.NewTreeStructureRoot(entry.Repository.ComputedRepo)
		default:
			workspaceID, err := roots.ResolveWorkspaceRoot(name, &entry.Repository)
			if err != nil {
				return nil, errs.Newf(errs.KindNotFound, "justmrconfig: resolving workspace root for %q: %v", name, err)
			}
			repo.Roots.Workspace = workspaceID
		}
		repo.Roots.Target = defaultString(entry.TargetRoot, repo.Roots.Workspace)
		repo.Roots.Rule = defaultString(entry.RuleRoot, repo.Roots.Workspace)
		repo.Roots.Expression = defaultString(entry.ExpressionRoot, repo.Roots.Workspace)
		cfg.Repositories[name] = repo
	}
	return cfg, nil
}

func defaultString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// RootResolver resolves a non-precomputed repository's raw RepositorySpec
// into a workspace-root artifact id. Its implementations (git clone,
// archive/zip fetch + extract, plain file path, distdir merge, git-tree
// subtree lookup) live outside this package's scope per spec.md §1; this
// interface is the seam justmrconfig drives them through.
type RootResolver interface {
	ResolveWorkspaceRoot(repoName string, spec *RepositorySpec) (artifactID string, err error)
}

// SortedRepositoryNames returns doc's repository names in sorted order,
// for deterministic CLI output (setup/setup-env, §6).
func (d *Document) SortedRepositoryNames() []string {
	names := make([]string, 0, len(d.Repositories))
	for name := range d.Repositories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
