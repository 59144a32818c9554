// Package asyncmap implements the async demand-driven evaluator (C3 in
// SPEC_FULL.md): a key→value map with at-most-once production, cycle
// detection along the current dependency path, and bounded fan-out.
//
// The original models worker threads explicitly and has producers
// "suspend" by handing a continuation to a subcaller so a fixed thread
// pool never starves. Go's goroutines are cheap and the runtime already
// multiplexes blocked goroutines onto OS threads, so this port keeps the
// concurrency *cap* (bounding how many producer bodies run at once) but
// replaces manual continuation-passing with ordinary blocking calls:
// Subcaller.Call releases its caller's slot before waiting on dependency
// keys and reacquires one before resuming — the Go-idiomatic equivalent
// of "suspend and reschedule as a new task" from spec.md §4.3.
package asyncmap

import (
	"fmt"
	"strings"
	"sync"
)

type state int

const (
	statePending state = iota
	stateReady
	stateFailed
)

type entry[V any] struct {
	mu    sync.Mutex
	state state
	value V
	err   error
	done  chan struct{}
}

// Logger reports producer diagnostics. A fatal call transitions the
// producing key to the failed state; non-fatal calls are pure warnings.
type Logger func(msg string, fatal bool)

// Producer computes the value for key. It must not block on unrelated
// work; it may only suspend by calling subcaller.Call with the keys it
// depends on.
type Producer[K comparable, V any] func(setter func(V), logger Logger, subcaller *Subcaller[K, V], key K)

// Map is an async, demand-driven, at-most-once key→value cache.
type Map[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
	produce Producer[K, V]
	sem     chan struct{}
}

// New returns a Map backed by produce, running at most workers producer
// bodies concurrently.
func New[K comparable, V any](workers int, produce Producer[K, V]) *Map[K, V] {
	if workers <= 0 {
		workers = 1
	}
	return &Map[K, V]{
		entries: make(map[K]*entry[V]),
		produce: produce,
		sem:     make(chan struct{}, workers),
	}
}

func (m *Map[K, V]) acquire() { m.sem <- struct{}{} }
func (m *Map[K, V]) release() { <-m.sem }

// CycleError reports a dependency cycle detected along the current
// production path.
type CycleError[K comparable] struct {
	Chain []K
}

func (e *CycleError[K]) Error() string {
	parts := make([]string, len(e.Chain))
	for i, k := range e.Chain {
		parts[i] = fmt.Sprint(k)
	}
	return "cycle detected: " + strings.Join(parts, " -> ")
}

// Get resolves key, producing it on first demand. Top-level callers pass
// a nil chain; it is threaded automatically through Subcaller.Call for
// recursive lookups performed by a producer.
func (m *Map[K, V]) Get(key K, chain []K) (V, error) {
	for _, k := range chain {
		if k == key {
			var zero V
			fullChain := append(append([]K(nil), chain...), key)
			return zero, &CycleError[K]{Chain: fullChain}
		}
	}

	e, isNew := m.getOrCreate(key)
	if !isNew {
		<-e.done
		return e.value, e.err
	}

	m.acquire()
	m.runProducer(e, key, chain)
	m.release()

	<-e.done
	return e.value, e.err
}

func (m *Map[K, V]) getOrCreate(key K) (*entry[V], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return e, false
	}
	e := &entry[V]{done: make(chan struct{})}
	m.entries[key] = e
	return e, true
}

func (m *Map[K, V]) runProducer(e *entry[V], key K, chain []K) {
	subChain := append(append([]K(nil), chain...), key)
	subcaller := &Subcaller[K, V]{m: m, chain: subChain, key: key}

	var (
		setCalled bool
		failed    bool
	)
	setter := func(v V) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.state != statePending {
			return
		}
		e.value = v
		e.state = stateReady
		setCalled = true
		close(e.done)
	}
	logger := func(msg string, fatal bool) {
		if !fatal {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.state != statePending {
			return
		}
		e.err = fmt.Errorf("%v: %s", key, msg)
		e.state = stateFailed
		failed = true
		close(e.done)
	}

	m.produce(setter, logger, subcaller, key)

	if !setCalled && !failed {
		// A well-behaved producer always calls setter or a fatal logger
		// before returning; guard against one that doesn't so callers
		// never block forever.
		logger("producer returned without a value", true)
	}
}

// Subcaller schedules dependency lookups for a producer and carries the
// chain of keys on the current production path for cycle detection.
type Subcaller[K comparable, V any] struct {
	m     *Map[K, V]
	chain []K
	key   K
}

// Call resolves keys and, once every one of them is ready, invokes
// continuation with their values in the same order the keys were given.
// If any dependency fails fatally, continuation is not run and logger is
// invoked with fatal=true instead.
func (s *Subcaller[K, V]) Call(keys []K, continuation func([]V), logger Logger) {
	values := make([]V, len(keys))
	s.m.release()
	for i, k := range keys {
		v, err := s.m.Get(k, s.chain)
		if err != nil {
			s.m.acquire()
			logger(err.Error(), true)
			return
		}
		values[i] = v
	}
	s.m.acquire()
	continuation(values)
}
