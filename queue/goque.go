package queue

import (
	"context"
	"sync"

	"github.com/beeker1121/goque"
	"github.com/manishrjain/denorm/indexer"
	"github.com/manishrjain/denorm/x"
	"github.com/pkg/errors"
)

// Goque is a durable queue on local disk. The priority of an item is the
// number of attempts made on it, so fresh tasks are always picked before
// retries.
type Goque struct {
	pq  *goque.PriorityQueue
	opt Options
}

func OpenGoque(path string, opt Options) (*Goque, error) {
	pq, err := goque.OpenPriorityQueue(path, goque.ASC)
	if err != nil {
		x.LogErr(log, err).WithField("path", path).Error("Error opening queue")
		return nil, errors.Wrap(err, "goque: open")
	}
	return &Goque{pq: pq, opt: opt.withDefaults()}, nil
}

func (g *Goque) enqueue(task indexer.Task, attempt int) error {
	buf, err := task.Encode()
	if err != nil {
		return err
	}
	if _, err := g.pq.Enqueue(uint8(attempt), buf); err != nil {
		return errors.Wrap(err, "goque: enqueue")
	}
	return nil
}

func (g *Goque) Enqueue(ctx context.Context, task indexer.Task) error {
	return g.enqueue(task, 0)
}

// Run starts the workers, and blocks until ctx is done.
func (g *Goque) Run(ctx context.Context, exec Executor) error {
	var wg sync.WaitGroup
	for i := 0; i < g.opt.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.work(ctx, exec)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (g *Goque) work(ctx context.Context, exec Executor) {
	for ctx.Err() == nil {
		item, err := g.pq.Dequeue()
		if err == goque.ErrEmpty {
			if !sleep(ctx, g.opt.PollInterval) {
				return
			}
			continue
		}
		if err != nil {
			x.LogErr(log, err).Error("While dequeueing")
			if !sleep(ctx, g.opt.PollInterval) {
				return
			}
			continue
		}
		task, err := indexer.DecodeTask(item.Value)
		if err != nil {
			x.LogErr(log, err).WithField("id", item.ID).Error("Dropping undecodable item")
			TasksTotal.WithLabelValues("goque", "dropped").Inc()
			continue
		}
		handle(ctx, "goque", exec, g.opt, task, int(item.Priority), func(attempt int) error {
			return g.enqueue(task, attempt)
		})
	}
}

// Length returns the number of tasks waiting, retries included.
func (g *Goque) Length() uint64 {
	return g.pq.Length()
}

func (g *Goque) Close() error {
	return g.pq.Close()
}
