// Package main runs a reindexing daemon for the example social kinds. It
// serves entity saves over http, propagates them to the documents
// embedding the saved entity, and optionally reindexes everything
// periodically.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/manishrjain/denorm/config"
	"github.com/manishrjain/denorm/example/kinds"
	"github.com/manishrjain/denorm/helper"
	"github.com/manishrjain/denorm/indexer"
	"github.com/manishrjain/denorm/queue"
	"github.com/manishrjain/denorm/req"
	"github.com/manishrjain/denorm/search"
	"github.com/manishrjain/denorm/store"
	"github.com/manishrjain/denorm/x"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/manishrjain/denorm/drivers/cassandra"
	_ "github.com/manishrjain/denorm/drivers/elasticsearch"
	_ "github.com/manishrjain/denorm/drivers/leveldb"
	_ "github.com/manishrjain/denorm/drivers/memsearch"
	_ "github.com/manishrjain/denorm/drivers/postgres"
)

var configPath = flag.String("config", "denorm.yaml", "Path to the yaml config")
var port = flag.String("port", ":8080", "Address to serve saves and reads on")

var log = x.Log("reindexd")

type runner interface {
	indexer.Queue
	Run(ctx context.Context, exec queue.Executor) error
	Close() error
}

func openQueue(ctx context.Context, c config.Queue) (runner, error) {
	switch c.Driver {
	case "goque":
		g, err := queue.OpenGoque(c.Path, c.Options())
		if err != nil {
			return nil, err
		}
		return g, nil
	case "redis":
		r, err := queue.DialRedis(ctx, c.Addr, c.Key, c.Options())
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, nil
}

func main() {
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		x.LogErr(log, err).Fatal("Loading config")
	}
	if err := x.SetLevel(cfg.LogLevel); err != nil {
		x.LogErr(log, err).Fatal("Setting log level")
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, ok := store.Get(cfg.Store.Driver)
	if !ok {
		log.WithField("drivers", store.Drivers()).Fatalf("Unknown store %q", cfg.Store.Driver)
	}
	if err := st.Init(cfg.Store.Args...); err != nil {
		x.LogErr(log, err).Fatal("Initializing store")
	}
	defer st.Close()

	engine, ok := search.Get(cfg.Search.Driver)
	if !ok {
		log.WithField("drivers", search.Drivers()).Fatalf("Unknown search engine %q", cfg.Search.Driver)
	}
	if err := engine.Init(cfg.Search.Args...); err != nil {
		x.LogErr(log, err).Fatal("Initializing search engine")
	}

	cat := indexer.NewCatalog(engine)
	if err := kinds.Define(ctx, cat); err != nil {
		x.LogErr(log, err).Fatal("Defining kinds")
	}

	q, err := openQueue(ctx, cfg.Queue)
	if err != nil {
		x.LogErr(log, err).Fatal("Opening queue")
	}
	var iq indexer.Queue
	if q != nil {
		iq = q
		defer q.Close()
	}

	c := req.NewContext(10)
	c.Store = st
	d := indexer.NewDispatcher(indexer.NewFanOut(st, engine, cat), iq)
	reg := indexer.NewRegistry(cat, c.Lifecycle, d)
	if err := cfg.Apply(reg); err != nil {
		x.LogErr(log, err).Fatal("Registering relationships")
	}

	prometheus.MustRegister(indexer.Collectors()...)
	prometheus.MustRegister(queue.Collectors()...)
	if len(cfg.MetricsAddr) > 0 {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				x.LogErr(log, err).Error("Serving metrics")
			}
		}()
	}

	if q != nil {
		go func() {
			if err := q.Run(ctx, d); err != nil && err != context.Canceled {
				x.LogErr(log, err).Error("Queue workers stopped")
			}
		}()
	}
	if cfg.Server.Wait > 0 {
		server := indexer.NewServer(st, engine, cat, cfg.Server.Batch)
		go server.InfiniteLoop(ctx, cfg.Server.Wait)
	}

	help := new(helper.Helper)
	help.SetContext(c)
	help.SetEngine(engine)
	mux := http.NewServeMux()
	mux.HandleFunc("/modify", help.CreateOrUpdate)
	mux.HandleFunc("/read/", help.Read)
	srv := &http.Server{Addr: *port, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	fmt.Println("Running...")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		x.LogErr(log, err).Fatal("Creating listener")
	}
}
