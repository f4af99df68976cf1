// Package config loads the yaml configuration of a reindexing process:
// which store and search engine to use, how deferred tasks are queued,
// and the relationships between kinds.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/manishrjain/denorm/indexer"
	"github.com/manishrjain/denorm/queue"
	"github.com/manishrjain/denorm/x"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

var log = x.Log("config")

type Driver struct {
	Driver string   `yaml:"driver"`
	Args   []string `yaml:"args"`
}

type Queue struct {
	// Driver is goque or redis. Empty means no queue, and no relationship
	// may then be deferred.
	Driver       string        `yaml:"driver"`
	Path         string        `yaml:"path"`
	Addr         string        `yaml:"addr"`
	Key          string        `yaml:"key"`
	Workers      int           `yaml:"workers"`
	MaxAttempts  int           `yaml:"max_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

func (q Queue) Options() queue.Options {
	return queue.Options{
		Workers:      q.Workers,
		MaxAttempts:  q.MaxAttempts,
		PollInterval: q.PollInterval,
	}
}

type Server struct {
	Batch int `yaml:"batch"`
	// Wait between full reindexing cycles. Zero disables the server.
	Wait time.Duration `yaml:"wait"`
}

type Relationship struct {
	Child  string           `yaml:"child"`
	Parent string           `yaml:"parent"`
	Mode   indexer.SyncMode `yaml:"mode"`
}

type Config struct {
	LogLevel      string         `yaml:"log_level"`
	MetricsAddr   string         `yaml:"metrics_addr"`
	Store         Driver         `yaml:"store"`
	Search        Driver         `yaml:"search"`
	Queue         Queue          `yaml:"queue"`
	Server        Server         `yaml:"server"`
	Relationships []Relationship `yaml:"relationships"`
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	return Parse(buf)
}

// Parse decodes the yaml, fills in defaults, and validates the result.
func Parse(buf []byte) (*Config, error) {
	c := &Config{
		LogLevel: "info",
		Search:   Driver{Driver: "memsearch"},
		Queue:    Queue{Key: "denorm:reindex", Workers: 1, MaxAttempts: 5, PollInterval: time.Second},
		Server:   Server{Batch: 1000},
	}
	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, errors.Wrap(err, "config: parse")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate returns all problems found, combined.
func (c *Config) Validate() (rerr error) {
	if len(c.Store.Driver) == 0 {
		rerr = multierr.Append(rerr, errors.New("config: store.driver is required"))
	}
	if len(c.Search.Driver) == 0 {
		rerr = multierr.Append(rerr, errors.New("config: search.driver is required"))
	}
	switch c.Queue.Driver {
	case "":
	case "goque":
		if len(c.Queue.Path) == 0 {
			rerr = multierr.Append(rerr, errors.New("config: queue.path is required for goque"))
		}
	case "redis":
		if len(c.Queue.Addr) == 0 {
			rerr = multierr.Append(rerr, errors.New("config: queue.addr is required for redis"))
		}
	default:
		rerr = multierr.Append(rerr, fmt.Errorf("config: unknown queue.driver %q", c.Queue.Driver))
	}
	for i, r := range c.Relationships {
		if len(r.Child) == 0 || len(r.Parent) == 0 {
			rerr = multierr.Append(rerr,
				fmt.Errorf("config: relationships[%d] needs child and parent", i))
		}
		if r.Mode == indexer.Deferred && len(c.Queue.Driver) == 0 {
			rerr = multierr.Append(rerr,
				fmt.Errorf("config: relationships[%d] is deferred, but no queue.driver set", i))
		}
	}
	return rerr
}

// Apply registers all the relationships, in order. It stops at the first
// one the registry refuses.
func (c *Config) Apply(reg *indexer.Registry) error {
	for _, r := range c.Relationships {
		if err := reg.Register(r.Child, r.Parent, r.Mode); err != nil {
			return err
		}
		log.WithField("child", r.Child).WithField("parent", r.Parent).
			Debug("Applied relationship")
	}
	return nil
}
