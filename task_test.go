package flexplan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTask_InvokeAndGet(t *testing.T) {
	add := NewTask[int]("add", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return args[0].(int) + args[1].(int), nil
	}).WithArgs(2, 3)

	add.Invoke(context.Background())
	v, err := add.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, v)
}

func TestTask_RecoversPanicAsError(t *testing.T) {
	tk := NewTask[int]("boom", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		panic("kaboom")
	})

	tk.Invoke(context.Background())
	_, err := tk.Get(context.Background())
	require.Error(t, err)
}

func TestTask_OnErrorIgnoreReturnsZeroValue(t *testing.T) {
	sentinel := errors.New("failed")
	tk := NewTask[int]("flaky", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return 0, sentinel
	}).WithOnError(OnErrorIgnore, nil, nil, nil)

	tk.Invoke(context.Background())
	v, err := tk.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, v)
}

func TestTask_OnErrorCoerceWithVerbatimValue(t *testing.T) {
	sentinel := errors.New("failed")
	tk := NewTask[int]("flaky", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return 0, sentinel
	}).WithOnError(OnErrorCoerce, 99, nil, nil)

	tk.Invoke(context.Background())
	v, err := tk.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 99, v)
}

func TestTask_OnErrorCoerceWithFunc(t *testing.T) {
	sentinel := errors.New("failed")
	tk := NewTask[int]("flaky", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return 0, sentinel
	}).WithOnError(OnErrorCoerce, func(err error, partial int) int { return -1 }, nil, nil)

	tk.Invoke(context.Background())
	v, err := tk.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, -1, v)
}

func TestTask_OnErrorRaiseWrapsError(t *testing.T) {
	sentinel := errors.New("failed")
	tk := NewTask[int]("flaky", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return 0, sentinel
	})

	tk.Invoke(context.Background())
	_, err := tk.Get(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, sentinel)
}

func TestFillPlaceholders_ResolvesAcrossHeterogeneousTasks(t *testing.T) {
	upstream := NewTask[int]("upstream", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return 10, nil
	})
	upstream.Invoke(context.Background())

	items := map[string]Gettable{"upstream": upstream}

	args := []any{NewPlaceholder("upstream", func(v any) any { return v.(int) * 2 })}
	var kwargs map[string]any

	err := FillPlaceholders(items, &args, &kwargs)
	require.NoError(t, err)
	require.Equal(t, 20, args[0])
}

func TestFillPlaceholders_RecursesIntoSlicesAndMaps(t *testing.T) {
	upstream := NewTask[string]("upstream", func(ctx context.Context, args []any, kwargs map[string]any) (string, error) {
		return "hello", nil
	})
	upstream.Invoke(context.Background())

	items := map[string]Gettable{"upstream": upstream}

	args := []any{[]any{NewPlaceholder("upstream", nil)}}
	kwargs := map[string]any{"nested": map[string]any{"k": NewPlaceholder("upstream", nil)}}

	err := FillPlaceholders(items, &args, &kwargs)
	require.NoError(t, err)
	require.Equal(t, "hello", args[0].([]any)[0])
	require.Equal(t, "hello", kwargs["nested"].(map[string]any)["k"])
}

func TestFillPlaceholders_UnknownTaskNameFails(t *testing.T) {
	items := map[string]Gettable{}
	args := []any{NewPlaceholder("missing", nil)}
	var kwargs map[string]any

	err := FillPlaceholders(items, &args, &kwargs)
	require.Error(t, err)
}

func TestTask_GetLocalSubstitutesThenRuns(t *testing.T) {
	upstream := NewTask[int]("upstream", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return 4, nil
	})
	upstream.Invoke(context.Background())

	downstream := NewTask[int]("downstream", func(ctx context.Context, args []any, kwargs map[string]any) (int, error) {
		return args[0].(int) * 10, nil
	}, "upstream").WithArgs(NewPlaceholder("upstream", nil))

	v, err := downstream.GetLocal(context.Background(), map[string]Gettable{"upstream": upstream})
	require.NoError(t, err)
	require.Equal(t, 40, v)
}
