package indexer

import (
	"context"
	"time"

	"github.com/manishrjain/denorm/search"
	"github.com/manishrjain/denorm/store"
	"github.com/manishrjain/denorm/x"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Incremental indexing server to continously regenerate
// and index entities to keep store and search in-sync.
type Server struct {
	store   store.Store
	engine  search.Engine
	catalog *Catalog
	batch   int
}

// NewServer returns back a server which loops over all the entities of
// every index-resident kind, batch records at a time. Each batch is one
// bulk write to the search engine.
func NewServer(st store.Store, engine search.Engine, cat *Catalog, batch int) *Server {
	if batch <= 0 {
		batch = 1000
	}
	return &Server{store: st, engine: engine, catalog: cat, batch: batch}
}

func (s *Server) reindex(ctx context.Context, idx Indexer, recs []x.Record) error {
	docs := make([]x.Doc, 0, len(recs))
	var rerr error
	for _, rec := range recs {
		doc, err := idx.Regenerate(ctx, s.store, rec)
		if err != nil {
			x.LogErr(log, err).WithField("entity", rec.Entity()).Error("While regenerating doc")
			rerr = multierr.Append(rerr, err)
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return rerr
	}
	result, err := s.engine.BulkStore(ctx, docs)
	if err != nil {
		return multierr.Append(rerr, err)
	}
	for _, item := range result.Failed() {
		rerr = multierr.Append(rerr, item.Err)
	}
	return rerr
}

// LoopOnce would cycle over all entities in the store, and re-index them.
// Failures are logged and the cycle carries on; they're returned combined
// at the end, along with the number of entities processed.
func (s *Server) LoopOnce(ctx context.Context) (total int, rerr error) {
	for _, kind := range s.catalog.Kinds() {
		idx, ok := s.catalog.Get(kind)
		if !ok {
			continue
		}
		from := ""
		for {
			recs, err := s.store.Iterate(ctx, kind, from, s.batch)
			if err != nil {
				x.LogErr(log, err).WithField("kind", kind).Error("While iterating")
				rerr = multierr.Append(rerr, err)
				break
			}
			if len(recs) == 0 {
				break
			}
			if err := s.reindex(ctx, idx, recs); err != nil {
				x.LogErr(log, err).WithField("kind", kind).Error("While reindexing chunk")
				rerr = multierr.Append(rerr, err)
			}
			log.WithFields(logrus.Fields{
				"kind":          kind,
				"num_processed": len(recs),
				"last":          recs[len(recs)-1].Id,
			}).Debug("Iteration chunk done")
			total += len(recs)
			if len(recs) < s.batch {
				break
			}
			from = recs[len(recs)-1].Id
		}
		if err := ctx.Err(); err != nil {
			return total, multierr.Append(rerr, err)
		}
	}
	log.WithField("total", total).Info("Reached end of cycle")
	return total, rerr
}

// InfiniteLoop would infinitely cycle over all entities in the store,
// waiting for wait duration after each cycle, until ctx is done.
func (s *Server) InfiniteLoop(ctx context.Context, wait time.Duration) error {
	for {
		n, err := s.LoopOnce(ctx)
		if err != nil && ctx.Err() == nil {
			x.LogErr(log, err).WithField("num_processed", n).
				Warn("Cycle finished with errors")
		}
		log.Debug("Sleeping...")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
