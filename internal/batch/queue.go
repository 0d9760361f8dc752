// Package batch runs independent tasks on a bounded worker pool. Tasks own
// their retry policy; the queue runs each exactly once and never drops a
// result.
package batch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Task represents a unit of work to be processed.
type Task[T any] interface {
	Execute(ctx context.Context) (T, error)
	ID() string
}

// Result pairs a task id with its outcome. Value is the zero value when
// Err is set.
type Result[T any] struct {
	TaskID string
	Value  T
	Err    error
}

// Queue fans queued tasks out to at most maxWorkers goroutines.
type Queue[T any] struct {
	tasks      []Task[T]
	maxWorkers int
	log        zerolog.Logger
	mu         sync.Mutex
}

// NewQueue creates a queue. A worker count below one is raised to one.
func NewQueue[T any](maxWorkers int, log zerolog.Logger) *Queue[T] {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Queue[T]{maxWorkers: maxWorkers, log: log}
}

// Add appends a task to the queue.
func (q *Queue[T]) Add(task Task[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
}

// ProcessAll runs every queued task and returns the results keyed by task
// id. One failing task never affects the others; callers inspect each
// Result's Err.
func (q *Queue[T]) ProcessAll(ctx context.Context) map[string]Result[T] {
	q.mu.Lock()
	tasks := make([]Task[T], len(q.tasks))
	copy(tasks, q.tasks)
	q.mu.Unlock()

	results := make(map[string]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}

	taskCh := make(chan Task[T], len(tasks))
	resultCh := make(chan Result[T], len(tasks))

	workers := q.maxWorkers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				value, err := task.Execute(ctx)
				if err != nil {
					q.log.Debug().Err(err).Str("task", task.ID()).Msg("task failed")
				}
				resultCh <- Result[T]{TaskID: task.ID(), Value: value, Err: err}
			}
		}()
	}

	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for result := range resultCh {
		results[result.TaskID] = result
	}
	return results
}

// FuncTask adapts a closure to the Task interface.
type FuncTask[T any] struct {
	TaskID string
	Fn     func(ctx context.Context) (T, error)
}

// Execute runs the wrapped closure.
func (t FuncTask[T]) Execute(ctx context.Context) (T, error) {
	return t.Fn(ctx)
}

// ID returns the task id.
func (t FuncTask[T]) ID() string {
	return t.TaskID
}
