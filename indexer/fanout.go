package indexer

import (
	"context"
	"errors"
	"time"

	"github.com/manishrjain/denorm/search"
	"github.com/manishrjain/denorm/store"
	"github.com/manishrjain/denorm/x"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// FanOut regenerates and writes the documents of all parents embedding
// a child.
type FanOut struct {
	store   store.Store
	engine  search.Engine
	catalog *Catalog
}

func NewFanOut(st store.Store, engine search.Engine, cat *Catalog) *FanOut {
	return &FanOut{store: st, engine: engine, catalog: cat}
}

// Execute looks up the parents of the task's child, and writes all their
// regenerated documents in a single bulk request. A child no parent refers
// to is not an error, and causes no write. Nothing is retried here.
func (f *FanOut) Execute(ctx context.Context, task Task) error {
	if err := task.Validate(); err != nil {
		return &FanOutError{Task: task, Err: err}
	}
	idx, ok := f.catalog.Get(task.ParentKind)
	if !ok {
		return &FanOutError{Task: task, Err: errors.New("No indexer for parent kind")}
	}
	start := time.Now()
	fk := ForeignKey(idx, task.ChildKind)
	lg := log.WithFields(logrus.Fields{
		"task":        task,
		"foreign_key": fk,
	})

	parents, err := f.store.FindWhere(ctx, task.ParentKind, fk, task.ChildId)
	if err != nil {
		x.LogErr(lg, err).Error("While looking up parents")
		return &FanOutError{Task: task, Err: err}
	}
	if len(parents) == 0 {
		lg.Debug("No parents found")
		return nil
	}

	docs := make([]x.Doc, 0, len(parents))
	for _, p := range parents {
		doc, err := idx.Regenerate(ctx, f.store, p)
		if err != nil {
			x.LogErr(lg, err).WithField("parent", p.Entity()).Error("While regenerating doc")
			return &FanOutError{Task: task, Err: err}
		}
		docs = append(docs, doc)
	}

	result, err := f.engine.BulkStore(ctx, docs)
	if err != nil {
		x.LogErr(lg, err).Error("While bulk storing docs")
		return &FanOutError{Task: task, Err: err}
	}
	var rerr error
	for _, item := range result.Failed() {
		rerr = multierr.Append(rerr, item.Err)
	}
	if rerr != nil {
		x.LogErr(lg, rerr).WithField("num_failed", len(result.Failed())).
			Error("Bulk store partially failed")
		return &FanOutError{Task: task, Err: rerr}
	}

	FanOutDocs.WithLabelValues(task.ParentKind).Add(float64(len(docs)))
	FanOutDuration.WithLabelValues(task.ParentKind).Observe(time.Since(start).Seconds())
	lg.WithField("num_docs", len(docs)).Debug("Reindexed parents")
	return nil
}
