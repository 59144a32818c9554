package progress_test

import (
	"testing"
	"time"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTaskTrackerSampleIsEarliestStarted(t *testing.T) {
	t.Parallel()
	tr := progress.NewTaskTracker()
	_, ok := tr.Sample()
	assert.False(t, ok)

	doneA := tr.Start("//a:target")
	doneB := tr.Start("//b:target")
	assert.Equal(t, 2, tr.Running())

	sample, ok := tr.Sample()
	require.True(t, ok)
	assert.Equal(t, "//a:target", sample)

	doneA()
	sample, ok = tr.Sample()
	require.True(t, ok)
	assert.Equal(t, "//b:target", sample)

	doneB()
	_, ok = tr.Sample()
	assert.False(t, ok)
}

func TestStatisticsCounters(t *testing.T) {
	t.Parallel()
	stats := progress.NewStatistics()
	stats.Cached.Inc()
	stats.Cached.Inc()
	stats.Executed.Inc()
	assert.EqualValues(t, 2, stats.Cached.Load())
	assert.EqualValues(t, 1, stats.Executed.Load())
	assert.EqualValues(t, 0, stats.Served.Load())
}

func TestReporterStartStop(t *testing.T) {
	t.Parallel()
	stats := progress.NewStatistics()
	tasks := progress.NewTaskTracker()
	r := progress.NewReporter(zap.NewNop(), stats, tasks, 5*time.Millisecond)
	r.Start()
	time.Sleep(15 * time.Millisecond)
	r.Stop()
}
