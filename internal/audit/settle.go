package audit

import (
	"context"
	"fmt"
	"sync"
)

// Outcome holds the settled result of one task.
type Outcome[T any] struct {
	Value T
	Err   error
}

// OK reports whether the task settled successfully.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// SettleAll runs every task concurrently and waits for all of them to settle,
// success or failure. It never cancels a still-running task because a sibling
// failed. If ctx expires first, tasks that have not yet settled are reported
// as failed with the context error; their goroutines are left to drain on
// their own. Panics inside a task are captured as failures rather than
// crashing the process.
func SettleAll[T any](ctx context.Context, tasks ...func(context.Context) (T, error)) []Outcome[T] {
	outcomes := make([]Outcome[T], len(tasks))
	done := make(chan int, len(tasks))
	var mu sync.Mutex

	for i, task := range tasks {
		go func(i int, task func(context.Context) (T, error)) {
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					outcomes[i] = Outcome[T]{Err: fmt.Errorf("task panicked: %v", r)}
					mu.Unlock()
				}
				done <- i
			}()
			value, err := task(ctx)
			mu.Lock()
			outcomes[i] = Outcome[T]{Value: value, Err: err}
			mu.Unlock()
		}(i, task)
	}

	settled := make([]bool, len(tasks))
	for remaining := len(tasks); remaining > 0; remaining-- {
		select {
		case i := <-done:
			settled[i] = true
		case <-ctx.Done():
			mu.Lock()
			out := make([]Outcome[T], len(outcomes))
			copy(out, outcomes)
			for i := range out {
				if !settled[i] {
					out[i] = Outcome[T]{Err: fmt.Errorf("task did not settle: %w", ctx.Err())}
				}
			}
			mu.Unlock()
			return out
		}
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]Outcome[T], len(outcomes))
	copy(out, outcomes)
	return out
}
