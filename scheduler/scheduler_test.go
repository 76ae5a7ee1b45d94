package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexplan/flexplan"
	"github.com/flexplan/flexplan/executor"
	"github.com/flexplan/flexplan/metrics"
	"github.com/flexplan/flexplan/scheduler"
)

func TestScheduler_RunsDependentsAfterPredecessors(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	a := flexplan.NewTask("a", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		record("a")
		return 1, nil
	})
	b := flexplan.NewTask("b", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		record("b")
		return 2, nil
	}, "a")

	s := scheduler.NewOptions()
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	require.NoError(t, s.Run(context.Background()))

	require.Equal(t, []string{"a", "b"}, order)
}

func TestScheduler_ResolvesPlaceholderFromPredecessor(t *testing.T) {
	a := flexplan.NewTask("a", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return 41, nil
	})
	var got int
	b := flexplan.NewTask("b", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		got = args[0].(int) + 1
		return got, nil
	}, "a")
	b.WithArgs(flexplan.NewPlaceholder("a", nil))

	s := scheduler.NewOptions()
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 42, got)

	v, err := b.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestScheduler_CyclicChainFailsWithChainError(t *testing.T) {
	a := flexplan.NewTask("a", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return 0, nil
	}, "b")
	b := flexplan.NewTask("b", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return 0, nil
	}, "a")

	s := scheduler.NewOptions()
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, scheduler.ErrChainInvalid))

	var chainErr *flexplan.ChainError
	require.True(t, errors.As(err, &chainErr))
	assert.ElementsMatch(t, []string{"a", "b"}, chainErr.Cyclic)
}

func TestScheduler_AddDuplicateNameFails(t *testing.T) {
	a := flexplan.NewTask("a", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return 0, nil
	})
	a2 := flexplan.NewTask("a", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return 0, nil
	})

	s := scheduler.NewOptions()
	require.NoError(t, s.Add(a))

	err := s.Add(a2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, scheduler.ErrTaskExists))
}

func TestScheduler_RerunResetsTasksAndReinvokesThem(t *testing.T) {
	var calls int32
	a := flexplan.NewTask("a", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return int(atomic.AddInt32(&calls, 1)), nil
	})

	s := scheduler.NewOptions()
	require.NoError(t, s.Add(a))

	require.NoError(t, s.Run(context.Background()))
	first, err := a.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	require.NoError(t, s.Run(context.Background()))
	second, err := a.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second)
}

func TestScheduler_RunDetachedAndJoin(t *testing.T) {
	a := flexplan.NewTask("a", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		time.Sleep(5 * time.Millisecond)
		return 7, nil
	})

	s := scheduler.NewOptions()
	require.NoError(t, s.Add(a))

	result := s.RunDetached(context.Background())
	require.NoError(t, result.Join(context.Background()))
	assert.True(t, result.Ready(""))

	v, err := result.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestScheduler_BFSModeRunsIndependentTasksConcurrently(t *testing.T) {
	const n = 4
	var inflight int32
	var peak int32
	var mu sync.Mutex

	s := scheduler.NewOptions(scheduler.WithMode(scheduler.ModeBFS), scheduler.WithWorkers(n), scheduler.WithPoolCapacity(n))
	for i := 0; i < n; i++ {
		task := flexplan.NewTask(nameOf(i), func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
			cur := atomic.AddInt32(&inflight, 1)
			mu.Lock()
			if cur > peak {
				peak = cur
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inflight, -1)
			return 0, nil
		})
		require.NoError(t, s.Add(task))
	}

	require.NoError(t, s.Run(context.Background()))
	assert.Greater(t, int(peak), 1)
}

func nameOf(i int) string {
	return string(rune('a' + i))
}

func TestScheduler_SharedExecutorIsNotClosedByRun(t *testing.T) {
	pool := executor.NewHybridPool(metrics.NewNoopProvider(), executor.WithFixedPool(2))
	defer pool.Close()

	mk := func(name string) *flexplan.Task[int] {
		return flexplan.NewTask(name, func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
			return 0, nil
		})
	}

	s1 := scheduler.NewOptions(scheduler.WithWorkers(2), scheduler.WithExecutor(pool))
	require.NoError(t, s1.Add(mk("a")))
	require.NoError(t, s1.Run(context.Background()))

	// The pool survives the first workflow and serves a second one.
	s2 := scheduler.NewOptions(scheduler.WithWorkers(2), scheduler.WithExecutor(pool))
	require.NoError(t, s2.Add(mk("b")))
	require.NoError(t, s2.Run(context.Background()))
}

func TestScheduler_WithChainSeedsExistingDependencies(t *testing.T) {
	chain := flexplan.NewDependencyChain[string]()
	require.NoError(t, chain.Add("seed"))

	s := scheduler.NewOptions(scheduler.WithChain(chain))

	// "seed" is already present in the chain, so adding a task under the
	// same name is rejected, while a dependent of it registers cleanly.
	err := s.Add(flexplan.NewTask("seed", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return 0, nil
	}))
	require.Error(t, err)

	require.NoError(t, s.Add(flexplan.NewTask("child", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return 1, nil
	}, "seed")))
}

func TestScheduler_CoerceOnErrorYieldsFallbackResult(t *testing.T) {
	boom := errors.New("task exploded")
	tk := flexplan.NewTask[string]("t", func(ctx context.Context, args []any, kwargs map[string]any) (string, error) {
		return "", boom
	}).WithOnError(flexplan.OnErrorCoerce, func(err error, partial string) string { return "fallback" }, nil, nil)

	s := scheduler.NewOptions()
	require.NoError(t, s.Add(tk))

	result := s.RunDetached(context.Background())
	require.NoError(t, result.Join(context.Background()))

	v, err := result.Get(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestScheduler_MixModeRunsIndependentsAlongsideChain(t *testing.T) {
	var ran sync.Map
	mk := func(name string, after ...string) *flexplan.Task[int] {
		return flexplan.NewTask(name, func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
			ran.Store(name, true)
			return 0, nil
		}, after...)
	}

	s := scheduler.NewOptions(
		scheduler.WithMode(scheduler.ModeMix),
		scheduler.WithWorkers(4),
		scheduler.WithPoolCapacity(4),
		scheduler.WithIndependentRatio(0.5),
		scheduler.WithInterval(time.Millisecond),
	)
	require.NoError(t, s.Add(mk("dep0")))
	require.NoError(t, s.Add(mk("dep1", "dep0")))
	for _, name := range []string{"ind0", "ind1", "ind2"} {
		require.NoError(t, s.Add(mk(name)))
	}

	require.NoError(t, s.Run(context.Background()))
	for _, name := range []string{"dep0", "dep1", "ind0", "ind1", "ind2"} {
		_, ok := ran.Load(name)
		assert.True(t, ok, "task %s never ran", name)
	}
}

func TestScheduler_HeartbeatHandlerRunsEachTick(t *testing.T) {
	var ticks int32
	a := flexplan.NewTask("a", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		time.Sleep(10 * time.Millisecond)
		return 1, nil
	})

	s := scheduler.NewOptions(
		scheduler.WithWorkers(2),
		scheduler.WithInterval(time.Millisecond),
		scheduler.WithHeartbeat(func(ctx context.Context) error {
			atomic.AddInt32(&ticks, 1)
			return nil
		}),
	)
	require.NoError(t, s.Add(a))

	require.NoError(t, s.Run(context.Background()))
	assert.Greater(t, int(atomic.LoadInt32(&ticks)), 0)
}

func TestScheduler_NestedWorkflowHeartbeat(t *testing.T) {
	var nestedRuns int32
	nestedTask := flexplan.NewTask("pulse", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		atomic.AddInt32(&nestedRuns, 1)
		return 0, nil
	})
	nested := scheduler.NewOptions()
	require.NoError(t, nested.Add(nestedTask))

	a := flexplan.NewTask("a", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return 1, nil
	})
	s := scheduler.NewOptions(
		scheduler.WithWorkers(2),
		scheduler.WithInterval(time.Millisecond),
		scheduler.WithHeartbeatWorkflow(nested),
	)
	require.NoError(t, s.Add(a))

	require.NoError(t, s.Run(context.Background()))
	assert.Greater(t, int(atomic.LoadInt32(&nestedRuns)), 0)
}

func TestScheduler_AllModesProduceSameResults(t *testing.T) {
	build := func(mode scheduler.Mode) map[string]any {
		double := func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
			return args[0].(int) * 2, nil
		}

		root := flexplan.NewTask("root", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
			return 3, nil
		})
		left := flexplan.NewTask("left", double, "root").WithArgs(flexplan.NewPlaceholder("root", nil))
		right := flexplan.NewTask("right", double, "root").WithArgs(flexplan.NewPlaceholder("root", nil))
		join := flexplan.NewTask("join", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
			return args[0].(int) + args[1].(int), nil
		}, "left", "right").WithArgs(flexplan.NewPlaceholder("left", nil), flexplan.NewPlaceholder("right", nil))

		s := scheduler.NewOptions(
			scheduler.WithMode(mode),
			scheduler.WithWorkers(3),
			scheduler.WithPoolCapacity(3),
			scheduler.WithInterval(time.Millisecond),
		)
		for _, task := range []*flexplan.Task[int]{root, left, right, join} {
			require.NoError(t, s.Add(task))
		}

		result := s.RunDetached(context.Background())
		require.NoError(t, result.Join(context.Background()))

		all, err := result.Get(context.Background(), "")
		require.NoError(t, err)
		return all.(map[string]any)
	}

	bfs := build(scheduler.ModeBFS)
	dfs := build(scheduler.ModeDFS)
	mix := build(scheduler.ModeMix)

	assert.Equal(t, map[string]any{"root": 3, "left": 6, "right": 6, "join": 12}, bfs)
	assert.Equal(t, bfs, dfs)
	assert.Equal(t, bfs, mix)
}

func TestScheduler_EmptyWorkflowRunSucceeds(t *testing.T) {
	s := scheduler.NewOptions()
	require.NoError(t, s.Run(context.Background()))
}

func TestScheduler_RemoveAndIgnoreDelegateToChain(t *testing.T) {
	mk := func(name string, after ...string) *flexplan.Task[int] {
		return flexplan.NewTask(name, func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
			return 0, nil
		}, after...)
	}

	s := scheduler.NewOptions()
	require.NoError(t, s.Add(mk("a")))
	require.NoError(t, s.Add(mk("b", "a")))
	require.NoError(t, s.Add(mk("c", "b")))

	require.NoError(t, s.Ignore("b"))
	require.NoError(t, s.Remove("a"))
	require.Error(t, s.Remove("missing"))

	require.NoError(t, s.Run(context.Background()))
}
