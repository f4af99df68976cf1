package store

import (
	"context"
	"sync"

	"github.com/manishrjain/denorm/x"
	"go.uber.org/multierr"
)

// SaveHook is run after a record has been successfully written.
type SaveHook func(ctx context.Context, rec x.Record) error

// Lifecycle holds the after-save hooks, per entity kind. Hooks run in the
// order they were attached. Lifecycle does not deduplicate; callers that
// must attach only once keep track of that themselves.
type Lifecycle struct {
	mu    sync.RWMutex
	hooks map[string][]SaveHook
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{hooks: make(map[string][]SaveHook)}
}

// AfterSave attaches fn to the save lifecycle of kind.
func (l *Lifecycle) AfterSave(kind string, fn SaveHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks[kind] = append(l.hooks[kind], fn)
	log.WithField("kind", kind).Debug("Attached after save hook")
}

// Num returns the number of hooks attached to kind.
func (l *Lifecycle) Num(kind string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.hooks[kind])
}

// Fire runs every hook attached to the record's kind. A failing hook does
// not stop the rest from running; all errors are returned combined.
func (l *Lifecycle) Fire(ctx context.Context, rec x.Record) error {
	l.mu.RLock()
	hooks := make([]SaveHook, len(l.hooks[rec.Kind]))
	copy(hooks, l.hooks[rec.Kind])
	l.mu.RUnlock()

	var rerr error
	for _, fn := range hooks {
		if err := fn(ctx, rec); err != nil {
			x.LogErr(log, err).WithField("entity", rec.Entity()).
				Warn("After save hook failed")
			rerr = multierr.Append(rerr, err)
		}
	}
	return rerr
}
