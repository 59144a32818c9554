// Package progress implements the progress and statistics component
// (C10 in SPEC_FULL.md): a running-task tracker used for "currently
// building X…" messages, atomic statistics counters, and a background
// reporter goroutine.
//
// Grounded on _examples/bufbuild-buf/internal/pkg/instrument/instrument.go
// (zap.Logger + CheckedEntry timer pattern), generalised here from a
// single-call timer to a sampler over many concurrently running tasks, per
// original_source/src/buildtool/progress_reporting/task_tracker.hpp.
package progress

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// TaskTracker keeps a monotonically increasing "priority" for every
// running task, so Sample can report the earliest-started task still
// running.
type TaskTracker struct {
	mu       sync.Mutex
	next     int64
	priority map[string]int64 // task name -> start-order priority
}

// NewTaskTracker returns an empty TaskTracker.
func NewTaskTracker() *TaskTracker {
	return &TaskTracker{priority: make(map[string]int64)}
}

// Start registers name as running, if it is not already. Returns a Done
// func the caller must call exactly once when the task finishes.
func (t *TaskTracker) Start(name string) (done func()) {
	t.mu.Lock()
	if _, ok := t.priority[name]; !ok {
		t.priority[name] = t.next
		t.next++
	}
	t.mu.Unlock()
	return func() { t.finish(name) }
}

func (t *TaskTracker) finish(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.priority, name)
}

// Sample returns the name of the earliest-started task still running, and
// true, or ("", false) if no task is running.
func (t *TaskTracker) Sample() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.priority) == 0 {
		return "", false
	}
	names := make([]string, 0, len(t.priority))
	for name := range t.priority {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return t.priority[names[i]] < t.priority[names[j]]
	})
	return names[0], true
}

// Running returns the number of currently running tasks.
func (t *TaskTracker) Running() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.priority)
}

// Statistics is a set of atomic counters for the build's overall
// cached/served/executed/queued/dispatched actions (spec.md §4.10).
type Statistics struct {
	Cached     atomic.Int64
	Served     atomic.Int64
	Executed   atomic.Int64
	Queued     atomic.Int64
	Dispatched atomic.Int64
}

// NewStatistics returns a zeroed Statistics.
func NewStatistics() *Statistics { return &Statistics{} }

// Reporter periodically logs "n cached, m served, k processing (sample)"
// until Stop is called; grounded on instrument.Start's zap.Logger.Check
// cheap-no-op-guard idiom, applied here to a recurring ticker instead of
// a single timed call.
type Reporter struct {
	logger *zap.Logger
	stats  *Statistics
	tasks  *TaskTracker
	period time.Duration

	done chan struct{}
	wg   sync.WaitGroup
}

// NewReporter returns a Reporter that logs stats/tasks at the given
// period once Start is called.
func NewReporter(logger *zap.Logger, stats *Statistics, tasks *TaskTracker, period time.Duration) *Reporter {
	if period <= 0 {
		period = time.Second
	}
	return &Reporter{logger: logger, stats: stats, tasks: tasks, period: period, done: make(chan struct{})}
}

// Start launches the background reporter goroutine.
func (r *Reporter) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.period)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				return
			case <-ticker.C:
				r.logOnce()
			}
		}
	}()
}

// Stop signals the reporter to exit and waits for it to do so.
func (r *Reporter) Stop() {
	close(r.done)
	r.wg.Wait()
}

func (r *Reporter) logOnce() {
	if checked := r.logger.Check(zap.InfoLevel, "build_progress"); checked != nil {
		sample, ok := r.tasks.Sample()
		fields := []zap.Field{
			zap.Int64("cached", r.stats.Cached.Load()),
			zap.Int64("served", r.stats.Served.Load()),
			zap.Int("processing", r.tasks.Running()),
		}
		if ok {
			fields = append(fields, zap.String("sample", sample))
		}
		checked.Write(fields...)
	}
}
