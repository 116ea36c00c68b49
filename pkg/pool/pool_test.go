package pool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meepleboard/meeple/pkg/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Run(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	var done atomic.Int64

	workerFunc := func(ctx context.Context, item int) (int, error) {
		time.Sleep(5 * time.Millisecond) // Simulate work
		return item * item, nil
	}

	results := pool.Run(context.Background(), items, 3, workerFunc, func(pool.Result[int, int]) { done.Add(1) })

	require.Len(t, results, len(items))
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, items[i]*items[i], r.Value, "results keep input order")
		assert.NoError(t, r.Err)
	}
	assert.Equal(t, int64(len(items)), done.Load())
	assert.Empty(t, pool.Errors(results))
}

func TestPool_CollectsErrors(t *testing.T) {
	items := []int{1, 2, 3, 4}
	expectedErr := errors.New("worker failed")

	workerFunc := func(ctx context.Context, item int) (string, error) {
		if item%2 == 0 {
			return "", expectedErr
		}
		return "ok", nil
	}

	results := pool.Run(context.Background(), items, 2, workerFunc, nil)

	errs := pool.Errors(results)
	assert.Len(t, errs, 2)
	assert.ErrorIs(t, results[1].Err, expectedErr)
	assert.Equal(t, "ok", results[2].Value)
}

func TestPool_CancelledContextMarksRemainingItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := make([]int, 50)
	var processed atomic.Int64

	workerFunc := func(ctx context.Context, item int) (struct{}, error) {
		if processed.Add(1) == 2 {
			cancel()
		}
		return struct{}{}, nil
	}

	results := pool.Run(ctx, items, 1, workerFunc, nil)

	require.Len(t, results, len(items))
	assert.Less(t, processed.Load(), int64(len(items)))
	assert.ErrorIs(t, results[len(items)-1].Err, context.Canceled)
}

func TestPool_ZeroWorkersStillRuns(t *testing.T) {
	results := pool.Run(context.Background(), []string{"a"}, 0, func(ctx context.Context, s string) (string, error) {
		return s + s, nil
	}, nil)
	assert.Equal(t, "aa", results[0].Value)
}

func TestPool_EmptyInput(t *testing.T) {
	results := pool.Run(context.Background(), []int{}, 4, func(ctx context.Context, i int) (int, error) {
		return i, nil
	}, nil)
	assert.Empty(t, results)
}
