package reposolve

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/artifact"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/digest"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/gitobj"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/normalpath"
)

// PrecomputedRootKind discriminates the two precomputed-root variants
// (spec.md §3's "Precomputed root").
type PrecomputedRootKind int

const (
	// PrecomputedRootComputed builds a named target first; its output is
	// itself a workspace root.
	PrecomputedRootComputed PrecomputedRootKind = iota
	// PrecomputedRootTreeStructure projects a repository's tree to its
	// shape (spec.md §4.5).
	PrecomputedRootTreeStructure
)

// PrecomputedRoot is a workspace root whose content is itself the output
// of a build (Computed) or a shape-only projection of another repo's tree
// (TreeStructure). Its identifier is used as a node identity in the
// resolver graph (spec.md §3).
type PrecomputedRoot struct {
	Kind PrecomputedRootKind

	// Repo is the repository the root is computed from (both variants).
	Repo string

	// Computed-only fields.
	TargetModule string
	TargetName   string
	ConfigJSON   string // canonical JSON of the target's effective config
}

// NewComputedRoot returns a Computed precomputed root.
func NewComputedRoot(repo, targetModule, targetName, configJSON string) *PrecomputedRoot {
	return &PrecomputedRoot{
		Kind:         PrecomputedRootComputed,
		Repo:         repo,
		TargetModule: targetModule,
		TargetName:   targetName,
		ConfigJSON:   configJSON,
	}
}

// NewTreeStructureRoot returns a TreeStructure precomputed root.
func NewTreeStructureRoot(repo string) *PrecomputedRoot {
	return &PrecomputedRoot{Kind: PrecomputedRootTreeStructure, Repo: repo}
}

type precomputedRootWire struct {
	Type         string `json:"type"`
	Repo         string `json:"repository"`
	TargetModule string `json:"target_module,omitempty"`
	TargetName   string `json:"target_name,omitempty"`
	Config       string `json:"config,omitempty"`
}

// ToJSON renders the precomputed root's tagged fields; ID hashes this form.
func (p *PrecomputedRoot) ToJSON() ([]byte, error) {
	w := precomputedRootWire{Repo: p.Repo}
	switch p.Kind {
	case PrecomputedRootComputed:
		w.Type = "computed"
		w.TargetModule = p.TargetModule
		w.TargetName = p.TargetName
		w.Config = p.ConfigJSON
	case PrecomputedRootTreeStructure:
		w.Type = "tree structure"
	default:
		return nil, errs.Newf(errs.KindInvariant, "reposolve: unknown precomputed root kind %d", p.Kind)
	}
	return json.Marshal(w)
}

// ID returns the digest of p's tagged fields.
func (p *PrecomputedRoot) ID() (string, error) {
	data, err := p.ToJSON()
	if err != nil {
		return "", err
	}
	dig, err := digest.HashCompatible(data)
	if err != nil {
		return "", err
	}
	return dig.Hex(), nil
}

// TreeStructureCache memoises TreeStructureDigest computations, per
// spec.md §4.5 ("the tree-structure computation is memoised"). A real
// build threads C9's content cache through here; tests and other small
// callers can use this in-process map directly.
type TreeStructureCache struct {
	computed map[string]string // source tree hex -> tree-structure tree hex
}

// NewTreeStructureCache returns an empty cache.
func NewTreeStructureCache() *TreeStructureCache {
	return &TreeStructureCache{computed: make(map[string]string)}
}

// TreeStructureDigest projects rootTreeHex (read from source, a
// native-hash ODB) to its "tree structure": a tree with the same shape
// where every file/executable blob is replaced by an empty blob of the
// same object type, and every symlink must be non-upwards (a hard
// invariant per SPEC_FULL.md's supplemented-feature note, grounded on
// original_source's compute_tree_structure.cpp). The result is written
// into target (which may be the same ODB as source) and memoised by
// source tree hex.
func (c *TreeStructureCache) TreeStructureDigest(ctx context.Context, source, target gitobj.ODB, rootTreeHex string) (string, error) {
	if hex, ok := c.computed[rootTreeHex]; ok {
		return hex, nil
	}
	hex, err := projectTreeStructure(ctx, source, target, rootTreeHex)
	if err != nil {
		return "", err
	}
	c.computed[rootTreeHex] = hex
	return hex, nil
}

func projectTreeStructure(ctx context.Context, source, target gitobj.ODB, treeHex string) (string, error) {
	entries, err := source.ReadTree(ctx, treeHex)
	if err != nil {
		return "", err
	}
	rebuilt := make([]gitobj.Entry, len(entries))
	for i, e := range entries {
		switch e.Type {
		case artifact.ObjectTypeTree:
			childHex, err := projectTreeStructure(ctx, source, target, e.Hash)
			if err != nil {
				return "", err
			}
			rebuilt[i] = gitobj.Entry{Name: e.Name, Type: e.Type, Hash: childHex}
		case artifact.ObjectTypeSymlink:
			content, err := source.ReadBlob(ctx, e.Hash)
			if err != nil {
				return "", err
			}
			if !normalpath.IsNonUpwards(string(content)) {
				return "", errs.Newf(errs.KindInvariant, "reposolve: tree structure root contains upwards symlink at %q", e.Name)
			}
			// The symlink's "content" is its target string, not
			// subject-to-emptying content, so it is preserved verbatim:
			// the shape of a symlink entry includes where it points. Copy
			// it into target so the rebuilt tree is self-contained there.
			symlinkHex, err := target.WriteBlob(ctx, content)
			if err != nil {
				return "", err
			}
			rebuilt[i] = gitobj.Entry{Name: e.Name, Type: e.Type, Hash: symlinkHex}
		default:
			emptyHex, err := target.WriteBlob(ctx, nil)
			if err != nil {
				return "", err
			}
			rebuilt[i] = gitobj.Entry{Name: e.Name, Type: e.Type, Hash: emptyHex}
		}
	}
	sort.Slice(rebuilt, func(i, j int) bool { return rebuilt[i].Name < rebuilt[j].Name })
	return target.WriteTree(ctx, rebuilt)
}
