// Package gitobj implements the Git object layer (C4 in SPEC_FULL.md): a
// content-addressed blob+tree store, shallow tree synthesis, and the
// symlink resolution state machine.
package gitobj

import (
	"context"
	"fmt"
	"strings"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/digest"
	"go.uber.org/zap"
)

func hashTreeBody(body []byte) (string, error) {
	dig, err := digest.HashTree(body)
	if err != nil {
		return "", err
	}
	return dig.Hex(), nil
}

// Mode is a GitRepo's open mode.
type Mode int

const (
	// ModeReal points at a directory on disk; it can init new repos and
	// fetch from URLs.
	ModeReal Mode = iota
	// ModeFake wraps an existing ODB only; thread-safe for reads.
	ModeFake
)

// GitRepo wraps an ODB (spec.md §4.4).
type GitRepo struct {
	mode   Mode
	odb    ODB
	logger *zap.Logger
}

// NewGitRepo wraps odb in the given mode.
func NewGitRepo(mode Mode, odb ODB, logger *zap.Logger) *GitRepo {
	return &GitRepo{mode: mode, odb: odb, logger: logger}
}

// Mode reports whether this GitRepo was opened "real" or "fake".
func (r *GitRepo) Mode() Mode { return r.mode }

// ReadBlob fetches a blob's raw content.
func (r *GitRepo) ReadBlob(ctx context.Context, hexID string) ([]byte, error) {
	return r.odb.ReadBlob(ctx, hexID)
}

// ReadTree fetches a tree's entries.
func (r *GitRepo) ReadTree(ctx context.Context, hexID string) ([]Entry, error) {
	return r.odb.ReadTree(ctx, hexID)
}

// CheckExists reports whether any object (blob or tree) exists at hexID.
func (r *GitRepo) CheckExists(ctx context.Context, hexID string) (bool, error) {
	return r.odb.CheckExists(ctx, hexID)
}

// CheckTreeExists reports whether a tree object exists at hexID.
func (r *GitRepo) CheckTreeExists(ctx context.Context, hexID string) (bool, error) {
	return r.odb.CheckTreeExists(ctx, hexID)
}

// GetSubtreeFromCommit resolves subdir (slash-separated, "" for the root)
// starting from commit's tree.
func (r *GitRepo) GetSubtreeFromCommit(ctx context.Context, commitHex, subdir string) (string, error) {
	treeHex, err := r.odb.ReadCommitTree(ctx, commitHex)
	if err != nil {
		return "", err
	}
	return r.GetSubtreeFromTree(ctx, treeHex, subdir)
}

// GetSubtreeFromTree resolves subdir starting from treeHex.
func (r *GitRepo) GetSubtreeFromTree(ctx context.Context, treeHex, subdir string) (string, error) {
	subdir = strings.Trim(subdir, "/")
	if subdir == "" || subdir == "." {
		return treeHex, nil
	}
	current := treeHex
	for _, component := range strings.Split(subdir, "/") {
		entries, err := r.odb.ReadTree(ctx, current)
		if err != nil {
			return "", err
		}
		next, ok := findEntry(entries, component)
		if !ok {
			return "", fmt.Errorf("gitobj: no entry %q in tree %s", component, current)
		}
		if !next.Type.IsTree() {
			return "", fmt.Errorf("gitobj: entry %q in tree %s is not a directory", component, current)
		}
		current = next.Hash
	}
	return current, nil
}

func findEntry(entries []Entry, name string) (Entry, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// CreateShallowTree synthesises a tree object in memory without writing
// it to the ODB: deterministic, sorted by Git's tree ordering.
func (r *GitRepo) CreateShallowTree(entries []Entry) (rawID string, body []byte, err error) {
	sorted := append([]Entry(nil), entries...)
	SortEntries(sorted)
	body, err = EncodeTree(sorted)
	if err != nil {
		return "", nil, err
	}
	dig, err := hashTreeBody(body)
	if err != nil {
		return "", nil, err
	}
	return dig, body, nil
}

// CreateTree writes entries into the ODB and returns the resulting tree
// hex id.
func (r *GitRepo) CreateTree(ctx context.Context, entries []Entry) (string, error) {
	return r.odb.WriteTree(ctx, entries)
}

// KeepTag creates an anchor ref for commitHex so a later GC does not drop
// it. Only meaningful for ModeReal; ModeFake is a no-op since a fake ODB
// has no GC to protect against.
func (r *GitRepo) KeepTag(ctx context.Context, commitHex, message string) error {
	if r.mode != ModeReal {
		return nil
	}
	real, ok := r.odb.(*realODB)
	if !ok {
		return nil
	}
	tagName := "refs/tags/keep-" + commitHex
	_, err := real.run(ctx, nil, "tag", "-f", "-m", message, "--no-sign", strings.TrimPrefix(tagName, "refs/tags/"), commitHex)
	return err
}
