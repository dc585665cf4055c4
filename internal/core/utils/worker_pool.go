package utils

import "sync"

type CompletedTask[T any] struct {
	Result T
	Error  error
}

// RunInPool runs worker over every element of queue with at most maxWorkers
// goroutines and closes completed once queue is drained. Results arrive in
// completion order.
func RunInPool[In any, Out any](worker func(In) (Out, error), queue chan In, completed chan CompletedTask[Out], maxWorkers int) {
	workers := max(1, min(len(queue), maxWorkers))

	go func() {
		wg := sync.WaitGroup{}
		wg.Add(workers)

		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				for next := range queue {
					res, err := worker(next)
					completed <- CompletedTask[Out]{Result: res, Error: err}
				}
			}()
		}

		wg.Wait()
		close(completed)
	}()
}

type indexed[T any] struct {
	idx   int
	value T
}

// MapInPool applies worker to items concurrently and returns the results in
// input order. The first error encountered is returned.
func MapInPool[In any, Out any](items []In, worker func(In) (Out, error), maxWorkers int) ([]Out, error) {
	queue := make(chan indexed[In], len(items))
	for i, item := range items {
		queue <- indexed[In]{idx: i, value: item}
	}
	close(queue)

	completed := make(chan CompletedTask[indexed[Out]], len(items))
	RunInPool(func(in indexed[In]) (indexed[Out], error) {
		out, err := worker(in.value)
		return indexed[Out]{idx: in.idx, value: out}, err
	}, queue, completed, maxWorkers)

	results := make([]Out, len(items))
	var firstErr error
	for task := range completed {
		if task.Error != nil {
			if firstErr == nil {
				firstErr = task.Error
			}
			continue
		}
		results[task.Result.idx] = task.Result.value
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
