// Package queue runs deferred reindex tasks on background workers. Tasks
// that fail are put back with their attempt count raised, until
// Options.MaxAttempts is reached.
package queue

import (
	"context"
	"time"

	"github.com/manishrjain/denorm/indexer"
	"github.com/manishrjain/denorm/x"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var log = x.Log("queue")

// Executor runs a task. indexer.Dispatcher is the Executor used in
// production.
type Executor interface {
	Execute(ctx context.Context, task indexer.Task) error
}

type Options struct {
	Workers      int
	MaxAttempts  int
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.MaxAttempts > 255 {
		o.MaxAttempts = 255
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	return o
}

var TasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "denorm",
	Subsystem: "queue",
	Name:      "tasks_total",
	Help:      "Tasks taken off the queue, by outcome.",
}, []string{"queue", "result"})

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{TasksTotal}
}

// handle executes the task, and calls requeue with the next attempt if it
// failed and may still be retried.
func handle(ctx context.Context, name string, exec Executor, opt Options,
	task indexer.Task, attempt int, requeue func(attempt int) error) {

	err := exec.Execute(ctx, task)
	if err == nil {
		TasksTotal.WithLabelValues(name, "ok").Inc()
		return
	}
	lg := x.LogErr(log, err).WithFields(logrus.Fields{
		"queue":   name,
		"task":    task,
		"attempt": attempt + 1,
	})
	if attempt+1 >= opt.MaxAttempts {
		TasksTotal.WithLabelValues(name, "dropped").Inc()
		lg.Error("Dropping task, out of attempts")
		return
	}
	if rerr := requeue(attempt + 1); rerr != nil {
		TasksTotal.WithLabelValues(name, "dropped").Inc()
		x.LogErr(lg, rerr).Error("While requeueing task")
		return
	}
	TasksTotal.WithLabelValues(name, "retried").Inc()
	lg.Warn("Task failed, requeued")
}

// sleep waits for d, returning false if ctx is done first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
