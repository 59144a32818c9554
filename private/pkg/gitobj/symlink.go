package gitobj

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/artifact"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/asyncmap"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/normalpath"
)

// Pragma selects how a symlink resolution treats symlinks it encounters.
type Pragma int

const (
	// PragmaIgnore drops symlink children from a rebuilt tree, and is a
	// fatal error if the entry being resolved is itself a symlink.
	PragmaIgnore Pragma = iota
	// PragmaResolvePartially keeps non-upwards symlinks as symlinks and
	// only chases upwards/absolute ones.
	PragmaResolvePartially
	// PragmaResolveCompletely always chases symlinks to their target.
	PragmaResolveCompletely
)

// ResolvedEntry is the result of resolving one path: its final object
// type and the hash of its content in the target ODB.
type ResolvedEntry struct {
	Type artifact.ObjectType
	Hash string
}

// Resolver resolves paths inside a tree, copying content from a source
// ODB into a target ODB as needed, memoising successful resolutions by
// (root tree, relative path, pragma) (spec.md §4.4).
type Resolver struct {
	source ODB
	target ODB
	m      *asyncmap.Map[string, ResolvedEntry]
}

// NewResolver returns a Resolver copying from source into target.
func NewResolver(source, target ODB, workers int) *Resolver {
	r := &Resolver{source: source, target: target}
	r.m = asyncmap.New(workers, r.produce)
	return r
}

type resolveKey struct {
	rootTree string
	relPath  string
	pragma   Pragma
}

func (k resolveKey) String() string {
	return k.rootTree + "\x00" + k.relPath + "\x00" + strconv.Itoa(int(k.pragma))
}

// Resolve resolves relPath inside rootTree under pragma, copying content
// into the target ODB as needed.
func (r *Resolver) Resolve(rootTree, relPath string, pragma Pragma) (ResolvedEntry, error) {
	relPath = normalpath.Normalize(relPath)
	return r.m.Get(resolveKey{rootTree, relPath, pragma}.String(), nil)
}

func parseResolveKey(key string) resolveKey {
	parts := strings.SplitN(key, "\x00", 3)
	pragma, _ := strconv.Atoi(parts[2])
	return resolveKey{rootTree: parts[0], relPath: parts[1], pragma: Pragma(pragma)}
}

func (r *Resolver) produce(setter func(ResolvedEntry), logger asyncmap.Logger, sc *asyncmap.Subcaller[string, ResolvedEntry], key string) {
	ctx := context.Background()
	k := parseResolveKey(key)

	if k.relPath == "." {
		// The root itself: ensure the whole tree is copied/rebuilt.
		r.resolveTree(ctx, k.rootTree, setter, logger, sc, k)
		return
	}

	parentPath := normalpath.Dir(k.relPath)
	parentEntries, parentHashInSource, err := r.lookupParentInSource(ctx, k.rootTree, parentPath)
	if err != nil {
		logger(err.Error(), true)
		return
	}
	_ = parentHashInSource
	entry, found := findEntry(parentEntries, normalpath.Base(k.relPath))
	if found {
		r.resolveEntry(ctx, entry, k, setter, logger, sc)
		return
	}

	// Step 1: the entry is missing; resolve the parent first and
	// re-lookup inside the *resolved* parent tree.
	parentKey := resolveKey{rootTree: k.rootTree, relPath: parentPath, pragma: k.pragma}
	sc.Call([]string{parentKey.String()}, func(vs []ResolvedEntry) {
		resolvedParent := vs[0]
		entries, err := r.target.ReadTree(ctx, resolvedParent.Hash)
		if err != nil {
			logger(err.Error(), true)
			return
		}
		entry, found := findEntry(entries, normalpath.Base(k.relPath))
		if !found {
			logger(fmt.Sprintf("gitobj: no entry %q in resolved parent", k.relPath), true)
			return
		}
		r.resolveEntry(ctx, entry, k, setter, logger, sc)
	}, logger)
}

// lookupParentInSource walks rootTree (the *source* tree) down to
// parentPath without resolving any symlinks along the way — a plain
// lookup used only to discover whether the leaf entry exists directly.
func (r *Resolver) lookupParentInSource(ctx context.Context, rootTree, parentPath string) ([]Entry, string, error) {
	current := rootTree
	if parentPath != "." {
		for _, component := range strings.Split(parentPath, "/") {
			entries, err := r.source.ReadTree(ctx, current)
			if err != nil {
				return nil, "", err
			}
			next, ok := findEntry(entries, component)
			if !ok || !next.Type.IsTree() {
				return nil, "", fmt.Errorf("gitobj: no directory %q under %s", parentPath, rootTree)
			}
			current = next.Hash
		}
	}
	entries, err := r.source.ReadTree(ctx, current)
	return entries, current, err
}

func (r *Resolver) resolveEntry(ctx context.Context, entry Entry, k resolveKey, setter func(ResolvedEntry), logger asyncmap.Logger, sc *asyncmap.Subcaller[string, ResolvedEntry]) {
	switch entry.Type {
	case artifact.ObjectTypeFile, artifact.ObjectTypeExecutable:
		// Step 2: ensure the blob exists in the target ODB.
		hash, err := r.copyBlob(ctx, entry.Hash)
		if err != nil {
			logger(err.Error(), true)
			return
		}
		setter(ResolvedEntry{Type: entry.Type, Hash: hash})
	case artifact.ObjectTypeTree:
		r.resolveTreeEntry(ctx, entry.Hash, k, setter, logger, sc)
	case artifact.ObjectTypeSymlink:
		r.resolveSymlink(ctx, entry, k, setter, logger, sc)
	default:
		logger(fmt.Sprintf("gitobj: unknown object type for %q", k.relPath), true)
	}
}

func (r *Resolver) resolveTree(ctx context.Context, treeHex string, setter func(ResolvedEntry), logger asyncmap.Logger, sc *asyncmap.Subcaller[string, ResolvedEntry], k resolveKey) {
	r.resolveTreeEntry(ctx, treeHex, k, setter, logger, sc)
}

// resolveTreeEntry rebuilds treeHex in the target ODB by resolving every
// child. Children that are symlinks with pragma=Ignore are dropped at
// this level and nowhere else.
func (r *Resolver) resolveTreeEntry(ctx context.Context, treeHex string, k resolveKey, setter func(ResolvedEntry), logger asyncmap.Logger, sc *asyncmap.Subcaller[string, ResolvedEntry]) {
	entries, err := r.source.ReadTree(ctx, treeHex)
	if err != nil {
		logger(err.Error(), true)
		return
	}

	var kept []Entry
	var childKeys []string
	for _, e := range entries {
		if e.Type == artifact.ObjectTypeSymlink && k.pragma == PragmaIgnore {
			continue
		}
		kept = append(kept, e)
		childPath := e.Name
		if k.relPath != "." {
			childPath = normalpath.Join(k.relPath, e.Name)
		}
		childKeys = append(childKeys, resolveKey{rootTree: k.rootTree, relPath: childPath, pragma: k.pragma}.String())
	}

	if len(kept) == 0 {
		hash, err := r.target.WriteTree(ctx, nil)
		if err != nil {
			logger(err.Error(), true)
			return
		}
		setter(ResolvedEntry{Type: artifact.ObjectTypeTree, Hash: hash})
		return
	}

	sc.Call(childKeys, func(vs []ResolvedEntry) {
		rebuilt := make([]Entry, len(kept))
		for i, e := range kept {
			rebuilt[i] = Entry{Name: e.Name, Type: vs[i].Type, Hash: vs[i].Hash}
		}
		hash, err := r.target.WriteTree(ctx, rebuilt)
		if err != nil {
			logger(err.Error(), true)
			return
		}
		setter(ResolvedEntry{Type: artifact.ObjectTypeTree, Hash: hash})
	}, logger)
}

func (r *Resolver) resolveSymlink(ctx context.Context, entry Entry, k resolveKey, setter func(ResolvedEntry), logger asyncmap.Logger, sc *asyncmap.Subcaller[string, ResolvedEntry]) {
	if k.pragma == PragmaIgnore {
		logger(fmt.Sprintf("gitobj: pragma Ignore reached leaf symlink %q", k.relPath), true)
		return
	}
	targetBytes, err := r.source.ReadBlob(ctx, entry.Hash)
	if err != nil {
		logger(err.Error(), true)
		return
	}
	target := string(targetBytes)
	dir := normalpath.Dir(k.relPath)
	if !normalpath.IsConfined(target, dir) {
		logger(fmt.Sprintf("gitobj: symlink %q target %q escapes the root", k.relPath, target), true)
		return
	}
	if k.pragma == PragmaResolvePartially && normalpath.IsNonUpwards(target) {
		hash, err := r.copyBlob(ctx, entry.Hash)
		if err != nil {
			logger(err.Error(), true)
			return
		}
		setter(ResolvedEntry{Type: artifact.ObjectTypeSymlink, Hash: hash})
		return
	}
	nextPath := normalpath.Join(dir, target)
	nextKey := resolveKey{rootTree: k.rootTree, relPath: nextPath, pragma: k.pragma}
	sc.Call([]string{nextKey.String()}, func(vs []ResolvedEntry) {
		setter(vs[0])
	}, logger)
}

// copyBlob ensures content at hexID exists in the target ODB, copying it
// from the source ODB if needed, and returns hexID unchanged (both ODBs
// share the native hash space, so copying never changes the address).
func (r *Resolver) copyBlob(ctx context.Context, hexID string) (string, error) {
	exists, err := r.target.CheckExists(ctx, hexID)
	if err != nil {
		return "", err
	}
	if exists {
		return hexID, nil
	}
	content, err := r.source.ReadBlob(ctx, hexID)
	if err != nil {
		return "", fmt.Errorf("gitobj: blob %s missing from both source and target ODB: %w", hexID, err)
	}
	writtenHex, err := r.target.WriteBlob(ctx, content)
	if err != nil {
		return "", err
	}
	if writtenHex != hexID {
		return "", fmt.Errorf("gitobj: blob %s rehashed to %s on copy", hexID, writtenHex)
	}
	return writtenHex, nil
}
