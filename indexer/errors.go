package indexer

import (
	"errors"
	"fmt"
)

// ErrNoQueue is the cause of an EnqueueError when no job queue is set.
var ErrNoQueue = errors.New("No job queue configured")

// ConfigurationError is returned at registration time for kinds which
// can't be resolved, or relationships which can't be honored.
type ConfigurationError struct {
	Kind   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("indexer: configuration: %s: %s", e.Kind, e.Reason)
}

// PreconditionError is returned when a trigger fires without the data
// needed to build a task.
type PreconditionError struct {
	Child  string
	Parent string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("indexer: precondition: %s -> %s: %s", e.Child, e.Parent, e.Reason)
}

// EnqueueError is returned when a deferred task can't be handed to the
// job queue.
type EnqueueError struct {
	Task Task
	Err  error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("indexer: enqueue %s: %v", e.Task, e.Err)
}

func (e *EnqueueError) Unwrap() error { return e.Err }

// FanOutError is returned when looking up the parents, regenerating their
// documents, or writing them to the search engine fails.
type FanOutError struct {
	Task Task
	Err  error
}

func (e *FanOutError) Error() string {
	return fmt.Sprintf("indexer: fan out %s: %v", e.Task, e.Err)
}

func (e *FanOutError) Unwrap() error { return e.Err }
