package indexer

import (
	"context"

	"github.com/manishrjain/denorm/x"
)

// Trigger turns a saved child into a Task for one parent kind. It does no
// index I/O of its own.
type Trigger struct {
	pair       Pair
	registry   *Registry
	dispatcher *Dispatcher
}

// Fire dispatches the reindexing of the pair's parents of rec, in the
// mode currently registered for the pair.
func (t *Trigger) Fire(ctx context.Context, rec x.Record) error {
	if len(rec.Id) == 0 {
		return &PreconditionError{Child: t.pair.Child, Parent: t.pair.Parent,
			Reason: "saved entity has no id"}
	}
	if rec.Kind != t.pair.Child {
		return &PreconditionError{Child: t.pair.Child, Parent: t.pair.Parent,
			Reason: "saved entity is of kind " + rec.Kind}
	}
	task := Task{
		ParentKind: t.pair.Parent,
		ChildKind:  t.pair.Child,
		ChildId:    rec.Id,
	}
	return t.dispatcher.Dispatch(ctx, task, t.registry.ModeFor(t.pair.Child, t.pair.Parent))
}
