package execbridge

import (
	"context"
	"time"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/digest"
)

// ExecuteRequest names one action to run: its digest (the OperationCache
// key), the runnable Action, whether it is marked "do not cache", and
// which RBE protocol revision ActionResult symlinks should follow.
type ExecuteRequest struct {
	ActionDigest *digest.Digest
	Action       *Action
	NoCache      bool
	Protocol     ProtocolVersion
}

// Execute runs req.Action under workdir via runner, packages the result
// into an ActionResult, and records it in cache under req.ActionDigest's
// hex key (spec.md §4.8's Execute/WaitExecution protocol).
//
// clock stamps WorkerStart/WorkerCompleted; pass time.Now in production
// and a fixed func in tests, since otherwise timestamps would make
// ActionResult assertions non-deterministic.
//
// The result is always recorded so a concurrent WaitExecution(key) call
// observes it, but Operation.Cacheable only becomes true when the run
// exited 0 and was not marked "do not cache" (spec.md §9): a caller
// deciding whether to reuse this result for a *different*, later Execute
// call with the same action digest must check Cacheable, not just Done.
func Execute(ctx context.Context, req *ExecuteRequest, workdir string, runner Runner, blobs BlobWriter, trees TreeBuilder, cache *OperationCache, clock func() time.Time) (*Operation, error) {
	key := req.ActionDigest.Hex()
	if op, ok := cache.Get(key); ok && op.Done && op.Cacheable {
		return op, nil
	}

	start := clock()
	runResult, err := runner.Run(ctx, workdir, req.Action)
	if err != nil {
		op := &Operation{Done: true, Err: err}
		cache.Put(key, op)
		return op, err
	}

	result := &ActionResult{
		ExitCode:        runResult.ExitCode,
		WorkerStart:     start,
		WorkerCompleted: clock(),
	}

	for _, path := range req.Action.OutputFiles {
		if err := collectFileOutput(ctx, workdir, path, req.Protocol, blobs, result); err != nil {
			op := &Operation{Done: true, Err: err}
			cache.Put(key, op)
			return op, err
		}
	}
	for _, path := range req.Action.OutputDirs {
		if err := collectDirOutput(ctx, workdir, path, req.Protocol, trees, result); err != nil {
			op := &Operation{Done: true, Err: err}
			cache.Put(key, op)
			return op, err
		}
	}

	if blobs != nil {
		if dig, err := blobs.WriteBlob(ctx, runResult.Stdout); err == nil {
			result.StdoutDigest = dig
		}
		if dig, err := blobs.WriteBlob(ctx, runResult.Stderr); err == nil {
			result.StderrDigest = dig
		}
	}

	op := &Operation{Done: true, Result: result, Cacheable: shouldCache(result.ExitCode, req.NoCache)}
	cache.Put(key, op)
	return op, nil
}
