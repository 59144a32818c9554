package asyncmap_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/just-buildsystem/justbuild-sub005/private/pkg/asyncmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

// squareProducer squares a key: value(n) = n*n, with no dependencies.
func squareProducer(setter func(int), _ asyncmap.Logger, _ *asyncmap.Subcaller[int, int], key int) {
	setter(key * key)
}

func TestGetProducesOnce(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	m := asyncmap.New(4, func(setter func(int), logger asyncmap.Logger, sc *asyncmap.Subcaller[int, int], key int) {
		calls.Inc()
		setter(key * key)
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.Get(7, nil)
			assert.NoError(t, err)
			assert.Equal(t, 49, v)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), calls.Load())
}

func TestSubcallerResolvesDependencies(t *testing.T) {
	t.Parallel()
	// fib(n) = fib(n-1) + fib(n-2), fib(0)=0, fib(1)=1.
	var produce asyncmap.Producer[int, int]
	produce = func(setter func(int), logger asyncmap.Logger, sc *asyncmap.Subcaller[int, int], key int) {
		if key < 2 {
			setter(key)
			return
		}
		sc.Call([]int{key - 1, key - 2}, func(vs []int) {
			setter(vs[0] + vs[1])
		}, logger)
	}
	m := asyncmap.New(4, produce)
	v, err := m.Get(10, nil)
	require.NoError(t, err)
	assert.Equal(t, 55, v)
}

func TestCycleDetectionFailsTheChain(t *testing.T) {
	t.Parallel()
	produce := func(setter func(string), logger asyncmap.Logger, sc *asyncmap.Subcaller[string, string], key string) {
		next := map[string]string{"a": "b", "b": "a"}[key]
		sc.Call([]string{next}, func(vs []string) {
			setter(key + "->" + vs[0])
		}, logger)
	}
	m := asyncmap.New(4, produce)
	_, err := m.Get("a", nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "a -> b -> a") || strings.Contains(err.Error(), "b -> a -> b"))
}

func TestNonCyclicSharedDependencyIsNotACycle(t *testing.T) {
	t.Parallel()
	// c depends on both a and b; a and b both depend on "leaf". This is a
	// diamond, not a cycle, since "leaf" is reached via two independent
	// paths rather than appearing twice on one path.
	produce := func(setter func(string), logger asyncmap.Logger, sc *asyncmap.Subcaller[string, string], key string) {
		switch key {
		case "leaf":
			setter("L")
		case "a", "b":
			sc.Call([]string{"leaf"}, func(vs []string) {
				setter(key + vs[0])
			}, logger)
		case "c":
			sc.Call([]string{"a", "b"}, func(vs []string) {
				setter(vs[0] + vs[1])
			}, logger)
		}
	}
	m := asyncmap.New(4, produce)
	v, err := m.Get("c", nil)
	require.NoError(t, err)
	assert.Equal(t, "aLbL", v)
}

func TestFatalLoggerFailsKeyWithoutCallingSetter(t *testing.T) {
	t.Parallel()
	produce := func(setter func(int), logger asyncmap.Logger, _ *asyncmap.Subcaller[int, int], key int) {
		logger(fmt.Sprintf("bad key %d", key), true)
	}
	m := asyncmap.New(2, produce)
	_, err := m.Get(1, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key 1")
}
