// Package execbridge implements the remote-execution protocol bridge
// (C8 in SPEC_FULL.md): mapping an internal action/artifact to the wire
// ActionResult shape, running actions locally, and the OperationCache
// LRU behind WaitExecution's polling contract.
package execbridge

import (
	"context"
	"errors"
	"sync"
)

// errWaitAlreadyCalled is returned by a second Wait call once the first
// has already observed the process's exit.
var errWaitAlreadyCalled = errors.New("execbridge: Wait already called")

// cmdCalls is the subset of *exec.Cmd a process needs; grounded on
// _examples/bufbuild-buf/private/pkg/command/process_test.go's
// mockCmdCalls interface, so the same Start/Wait/Kill lifecycle tests
// apply here.
type cmdCalls interface {
	Start() error
	Wait() error
	Kill() error
}

// process wraps a running command, delivering its exit status exactly
// once to Wait and invoking onExit (under a background goroutine)
// regardless of whether anyone ever calls Wait.
type process struct {
	calls  cmdCalls
	onExit func()

	mu       sync.Mutex
	exitErr  error
	exited   bool
	waited   bool
	exitChan chan struct{}
}

func newProcess(calls cmdCalls, onExit func()) *process {
	return &process{calls: calls, onExit: onExit, exitChan: make(chan struct{})}
}

// Start starts the underlying command and launches the background
// goroutine that waits for it to exit.
func (p *process) Start() error {
	if err := p.calls.Start(); err != nil {
		return err
	}
	go func() {
		err := p.calls.Wait()
		p.mu.Lock()
		p.exitErr = err
		p.exited = true
		p.mu.Unlock()
		close(p.exitChan)
		p.onExit()
	}()
	return nil
}

// Wait blocks until the process exits or ctx is done, killing the
// process on context cancellation. A second call after the first
// observed an exit returns errWaitAlreadyCalled.
func (p *process) Wait(ctx context.Context) error {
	p.mu.Lock()
	if p.waited {
		p.mu.Unlock()
		return errWaitAlreadyCalled
	}
	p.mu.Unlock()

	select {
	case <-p.exitChan:
		p.mu.Lock()
		p.waited = true
		err := p.exitErr
		p.mu.Unlock()
		return err
	case <-ctx.Done():
		_ = p.calls.Kill()
		<-p.exitChan
		p.mu.Lock()
		p.waited = true
		p.mu.Unlock()
		return ctx.Err()
	}
}
