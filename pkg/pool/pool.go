package pool

import (
	"context"
	"sync"
)

// WorkerFunc processes one item and produces a result.
type WorkerFunc[T, R any] func(ctx context.Context, item T) (R, error)

// Result pairs an item's outcome with its position in the input.
type Result[T, R any] struct {
	Index int
	Item  T
	Value R
	Err   error
}

// Run processes items with up to numWorkers goroutines. The returned slice
// is in input order. Items never started because ctx was cancelled carry
// ctx.Err(). onDone, if non-nil, is called once per finished item from the
// worker goroutines.
func Run[T, R any](ctx context.Context, items []T, numWorkers int, workerFunc WorkerFunc[T, R], onDone func(Result[T, R])) []Result[T, R] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	results := make([]Result[T, R], len(items))
	started := make([]bool, len(items))

	var wg sync.WaitGroup
	taskChan := make(chan int, numWorkers)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range taskChan {
				if ctx.Err() != nil {
					continue
				}
				started[idx] = true
				v, err := workerFunc(ctx, items[idx])
				results[idx] = Result[T, R]{Index: idx, Item: items[idx], Value: v, Err: err}
				if onDone != nil {
					onDone(results[idx])
				}
			}
		}()
	}

OUT:
	for idx := range items {
		select {
		case taskChan <- idx:
		case <-ctx.Done():
			break OUT
		}
	}
	close(taskChan)
	wg.Wait()

	for idx := range items {
		if !started[idx] {
			results[idx] = Result[T, R]{Index: idx, Item: items[idx], Err: ctx.Err()}
		}
	}
	return results
}

// Errors returns the non-nil errors of results.
func Errors[T, R any](results []Result[T, R]) []error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
