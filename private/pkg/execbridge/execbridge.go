// Package execbridge implements the execution bridge (C8 in
// SPEC_FULL.md): it maps an artifact.ActionDescription and its resolved
// inputs onto a local execution, packages the result into the
// ActionResult shape spec.md §4.8 requires (protocol-version-sensitive
// symlink encoding), and caches completed results behind a bounded
// OperationCache keyed by action digest.
//
// Grounded on _examples/bufbuild-buf/private/pkg/command/process.go and
// process_test.go for the run/Wait/Kill process lifecycle, and on
// original_source/src/buildtool/execution_api/common/execution_common.hpp
// for the ActionResult field layout and the "exit 0 and not do-not-cache"
// caching rule resolved in spec.md §9.
package execbridge

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/digest"
	"github.com/just-buildsystem/justbuild-sub005/private/pkg/errs"
)

// ProtocolVersion selects how OutputSymlinks are encoded in ActionResult.
// Grounded on spec.md §4.8's note that RBE protocol 2.1 merged the
// 2.0-era separate output_file_symlinks/output_directory_symlinks lists
// into a single output_symlinks list.
type ProtocolVersion int

const (
	// ProtocolV2_0 keeps file- and directory-rooted symlinks in separate
	// lists.
	ProtocolV2_0 ProtocolVersion = iota
	// ProtocolV2_1Plus merges them into one OutputSymlinks list.
	ProtocolV2_1Plus
)

// ArtifactInfo names one produced artifact's content and type.
type ArtifactInfo struct {
	Digest *digest.Digest
	Type   ObjectKind
}

// ObjectKind mirrors artifact.ObjectType without importing it, so this
// package stays usable against any produced-file classification; the
// local runner in runner.go assigns it from each output's file mode.
type ObjectKind int

const (
	KindFile ObjectKind = iota
	KindExecutable
	KindSymlink
	KindTree
)

// OutputFile is one ActionResult.OutputFiles entry.
type OutputFile struct {
	Path string
	ArtifactInfo
}

// OutputDirectory is one ActionResult.OutputDirectories entry: a
// materialised tree, identified by its tree digest.
type OutputDirectory struct {
	Path string
	ArtifactInfo
}

// OutputSymlink is one symlink output: its path and link-target string.
type OutputSymlink struct {
	Path   string
	Target string
}

// ActionResult is the wire shape produced by a completed execution
// (spec.md §4.8): exit status, output classification, stdout/stderr
// digests, and worker timestamps.
type ActionResult struct {
	ExitCode int32

	OutputFiles       []OutputFile
	OutputDirectories []OutputDirectory

	// OutputSymlinks holds every symlink output when Protocol is
	// ProtocolV2_1Plus. Under ProtocolV2_0, symlinks rooted at a
	// declared output file path land in OutputFileSymlinks and those
	// rooted at a declared output directory path land in
	// OutputDirectorySymlinks instead.
	OutputSymlinks         []OutputSymlink
	OutputFileSymlinks     []OutputSymlink
	OutputDirectorySymlinks []OutputSymlink

	StdoutDigest *digest.Digest
	StderrDigest *digest.Digest

	WorkerStart     time.Time
	WorkerCompleted time.Time
}

// addSymlink files target under the right list for protocol, given
// whether the declared output it satisfies was a file-output or a
// dir-output path.
func (r *ActionResult) addSymlink(protocol ProtocolVersion, isDirOutput bool, sym OutputSymlink) {
	if protocol == ProtocolV2_1Plus {
		r.OutputSymlinks = append(r.OutputSymlinks, sym)
		return
	}
	if isDirOutput {
		r.OutputDirectorySymlinks = append(r.OutputDirectorySymlinks, sym)
	} else {
		r.OutputFileSymlinks = append(r.OutputFileSymlinks, sym)
	}
}

// Operation is the polled execution handle WaitExecution resolves
// against: it carries an in-progress or terminal ActionResult plus the
// error that ended it, if any.
type Operation struct {
	Done      bool
	Result    *ActionResult
	Err       error
	Cacheable bool
}

// cacheEntry is one OperationCache slot.
type cacheEntry struct {
	key string
	op  *Operation
}

// OperationCache is a bounded LRU of completed operations keyed by
// action-digest hex. No example repo in the retrieved pack implements a
// generic bounded LRU (the nearest matches are unrelated "client"/"rule"
// identifiers that happen to contain the substring "lru"), so this is
// built directly on container/list + map, the standard idiom for an LRU
// in Go; see DESIGN.md.
type OperationCache struct {
	mu       sync.Mutex
	bound    int
	ll       *list.List
	elements map[string]*list.Element
}

// NewOperationCache returns an OperationCache holding at most 2^exponent
// entries (spec.md §4.8's configurable exponent; exponent <= 0 defaults
// to 2^16).
func NewOperationCache(exponent int) *OperationCache {
	bound := 1 << 16
	if exponent > 0 {
		bound = 1 << uint(exponent)
	}
	return &OperationCache{
		bound:    bound,
		ll:       list.New(),
		elements: make(map[string]*list.Element),
	}
}

// Put stores op under key, evicting the least-recently-used entry if
// the cache is at its bound.
func (c *OperationCache) Put(key string, op *Operation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.elements[key]; ok {
		el.Value.(*cacheEntry).op = op
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&cacheEntry{key: key, op: op})
	c.elements[key] = el
	if c.ll.Len() > c.bound {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.elements, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Get returns the Operation stored at key, refreshing its recency, and
// whether it was present.
func (c *OperationCache) Get(key string) (*Operation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.elements[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).op, true
}

// Len reports the number of entries currently cached.
func (c *OperationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// shouldCache implements spec.md §9's resolved Open Question: an
// execution is cacheable iff it exited 0 and the action was not marked
// "do not cache" (Action.NoCache).
func shouldCache(exitCode int32, noCache bool) bool {
	return exitCode == 0 && !noCache
}

// WaitExecution polls cache for key at 1Hz, per spec.md §4.8's
// "WaitExecution re-attaches to an in-flight or completed Execute call"
// contract, until the operation is Done or ctx is cancelled.
func WaitExecution(ctx context.Context, cache *OperationCache, key string) (*Operation, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		if op, ok := cache.Get(key); ok && op.Done {
			return op, nil
		}
		select {
		case <-ctx.Done():
			return nil, errs.Newf(errs.KindInternal, "execbridge: WaitExecution(%s): %v", key, ctx.Err())
		case <-ticker.C:
		}
	}
}
