package indexer

import (
	"context"
	"errors"
	"fmt"
)

// Writer executes a task. FanOut is the Writer used in production.
type Writer interface {
	Execute(ctx context.Context, task Task) error
}

// Queue hands tasks over for asynchronous execution. The queue owns
// storing the task durably, and later calling Dispatcher.Execute with it
// on a worker, retrying as it sees fit.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
}

// Dispatcher runs tasks inline, or defers them to a Queue.
type Dispatcher struct {
	writer Writer
	queue  Queue
}

// NewDispatcher returns a Dispatcher. The queue may be nil if no
// relationship runs in Deferred mode.
func NewDispatcher(w Writer, q Queue) *Dispatcher {
	return &Dispatcher{writer: w, queue: q}
}

// Dispatch runs the task in the given mode. Inline blocks until the index
// write is done, and returns any failure as a FanOutError. Deferred only
// blocks until the task is enqueued, and returns enqueue failures as an
// EnqueueError.
func (d *Dispatcher) Dispatch(ctx context.Context, task Task, mode SyncMode) (rerr error) {
	defer func() {
		DispatchTotal.WithLabelValues(task.ParentKind, task.ChildKind,
			mode.String(), result(rerr)).Inc()
	}()

	switch mode {
	case Inline:
		if err := d.writer.Execute(ctx, task); err != nil {
			var ferr *FanOutError
			if errors.As(err, &ferr) {
				return err
			}
			return &FanOutError{Task: task, Err: err}
		}
		return nil

	case Deferred:
		if d.queue == nil {
			return &EnqueueError{Task: task, Err: ErrNoQueue}
		}
		if err := d.queue.Enqueue(ctx, task); err != nil {
			return &EnqueueError{Task: task, Err: err}
		}
		log.WithField("task", task).Debug("Enqueued")
		return nil
	}
	return fmt.Errorf("Invalid %v for task %v", mode, task)
}

// Execute is called back by the job queue worker. Errors are returned as
// they are; the queue decides whether to retry.
func (d *Dispatcher) Execute(ctx context.Context, task Task) error {
	return d.writer.Execute(ctx, task)
}
