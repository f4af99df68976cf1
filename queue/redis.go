package queue

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/manishrjain/denorm/indexer"
	"github.com/manishrjain/denorm/x"
	"github.com/pkg/errors"
)

type envelope struct {
	Task    indexer.Task `json:"task"`
	Attempt int          `json:"attempt"`
}

// Redis is a queue shared by several processes, on a redis list. Tasks
// are pushed on the left, and popped off the right.
type Redis struct {
	client *redis.Client
	key    string
	opt    Options
}

func NewRedis(client *redis.Client, key string, opt Options) *Redis {
	return &Redis{client: client, key: key, opt: opt.withDefaults()}
}

// DialRedis connects to the redis server at addr, and checks that it's up.
func DialRedis(ctx context.Context, addr, key string, opt Options) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	timeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(timeout).Err(); err != nil {
		x.LogErr(log, err).WithField("addr", addr).Error("Redis is not available")
		client.Close()
		return nil, errors.Wrap(err, "redis: ping")
	}
	return NewRedis(client, key, opt), nil
}

func (r *Redis) push(ctx context.Context, task indexer.Task, attempt int) error {
	buf, err := json.Marshal(envelope{Task: task, Attempt: attempt})
	if err != nil {
		return err
	}
	return errors.Wrap(r.client.LPush(ctx, r.key, buf).Err(), "redis: push")
}

func (r *Redis) Enqueue(ctx context.Context, task indexer.Task) error {
	return r.push(ctx, task, 0)
}

// Run starts the workers, and blocks until ctx is done.
func (r *Redis) Run(ctx context.Context, exec Executor) error {
	var wg sync.WaitGroup
	for i := 0; i < r.opt.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(ctx, exec)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (r *Redis) work(ctx context.Context, exec Executor) {
	for ctx.Err() == nil {
		vals, err := r.client.BRPop(ctx, r.opt.PollInterval, r.key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			x.LogErr(log, err).Error("While popping")
			if !sleep(ctx, r.opt.PollInterval) {
				return
			}
			continue
		}
		// vals holds the key, and then the value.
		var env envelope
		if err := json.Unmarshal([]byte(vals[1]), &env); err != nil {
			x.LogErr(log, err).Error("Dropping undecodable item")
			TasksTotal.WithLabelValues("redis", "dropped").Inc()
			continue
		}
		if err := env.Task.Validate(); err != nil {
			x.LogErr(log, err).Error("Dropping invalid task")
			TasksTotal.WithLabelValues("redis", "dropped").Inc()
			continue
		}
		handle(ctx, "redis", exec, r.opt, env.Task, env.Attempt, func(attempt int) error {
			return r.push(context.Background(), env.Task, attempt)
		})
	}
}

func (r *Redis) Length(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.key).Result()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
