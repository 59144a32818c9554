package cas

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/digest"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/gitobj"
)

// treeMapVersion names the persisted association file's format, per
// spec.md §6's "tree-map-v<n>" layout entry. Bump when the on-disk
// record shape changes.
const treeMapVersion = 1

// Rehasher walks a native tree, writing each blob into compatible CAS and
// computing each directory's compatible digest bottom-up (spec.md §4.9) as
// the hash of a JSON listing of its entries; no wire Directory message is
// built. It caches native→compatible associations under a persistent file so the
// walk is done once per tree.
type Rehasher struct {
	store   *Store
	git     *gitobj.GitRepo
	mu      sync.Mutex
	mapPath string
	cache   map[string]string // native hex -> compatible hex, loaded from mapPath
}

// NewRehasher returns a Rehasher backed by store and git, persisting its
// native→compatible association map at buildRoot/tree-map-v<n>.
func NewRehasher(store *Store, git *gitobj.GitRepo, buildRoot string) (*Rehasher, error) {
	r := &Rehasher{
		store:   store,
		git:     git,
		mapPath: filepath.Join(buildRoot, "tree-map-v"+strconv.Itoa(treeMapVersion)),
		cache:   make(map[string]string),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rehasher) load() error {
	data, err := os.ReadFile(r.mapPath) //nolint:gosec // path is derived from build root configuration, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Newf(errs.KindInternal, "cas: reading tree map: %v", err)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return errs.Newf(errs.KindParse, "cas: malformed tree map at %s: %v", r.mapPath, err)
	}
	r.cache = m
	return nil
}

func (r *Rehasher) persist() error {
	data, err := json.Marshal(r.cache)
	if err != nil {
		return err
	}
	return os.WriteFile(r.mapPath, data, 0o644) //nolint:gosec // tree map is not a secret
}

// Compatible returns the compatible (SHA-256) digest for nativeTreeHex,
// rehashing and persisting the association if it is not already cached.
func (r *Rehasher) Compatible(ctx context.Context, nativeTreeHex string) (*digest.Digest, error) {
	r.mu.Lock()
	if cached, ok := r.cache[nativeTreeHex]; ok {
		r.mu.Unlock()
		return digest.New(digest.TypeCompatible, cached, 0, false)
	}
	r.mu.Unlock()

	compatHex, err := r.rehashTree(ctx, nativeTreeHex)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[nativeTreeHex] = compatHex
	err = r.persist()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return digest.New(digest.TypeCompatible, compatHex, 0, false)
}

// rehashTree walks the native tree bottom-up: every blob is copied into
// compatible CAS under its SHA-256 digest, and the directory's own
// compatible digest is the hash of its re-encoded JSON listing (entries
// in the order ReadTree returns them, referencing the already-rehashed
// child digests).
func (r *Rehasher) rehashTree(ctx context.Context, nativeTreeHex string) (string, error) {
	entries, err := r.git.ReadTree(ctx, nativeTreeHex)
	if err != nil {
		return "", err
	}
	type listEntry struct {
		Name string `json:"name"`
		Type string `json:"type"`
		Hex  string `json:"hex"`
	}
	listing := make([]listEntry, 0, len(entries))
	for _, e := range entries {
		var childHex string
		switch {
		case e.Type.IsTree():
			childHex, err = r.rehashTree(ctx, e.Hash)
		default:
			childHex, err = r.rehashBlob(ctx, e.Hash)
		}
		if err != nil {
			return "", err
		}
		listing = append(listing, listEntry{Name: e.Name, Type: e.Type.String(), Hex: childHex})
	}
	body, err := json.Marshal(listing)
	if err != nil {
		return "", err
	}
	dig, err := digest.HashCompatible(body)
	if err != nil {
		return "", err
	}
	if err := r.store.putBlobAt(ctx, dig, body); err != nil {
		return "", err
	}
	return dig.Hex(), nil
}

func (r *Rehasher) rehashBlob(ctx context.Context, nativeHex string) (string, error) {
	nativeDig, err := digest.New(digest.TypeNative, nativeHex, 0, false)
	if err != nil {
		return "", err
	}
	content, err := r.store.Get(ctx, nativeDig)
	if err != nil {
		content, err = r.git.ReadBlob(ctx, nativeHex)
		if err != nil {
			return "", err
		}
	}
	compatDig, err := digest.HashCompatible(content)
	if err != nil {
		return "", err
	}
	if err := r.store.putBlobAt(ctx, compatDig, content); err != nil {
		return "", err
	}
	return compatDig.Hex(), nil
}
