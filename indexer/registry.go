package indexer

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/manishrjain/denorm/store"
	"github.com/manishrjain/denorm/x"
	"github.com/sirupsen/logrus"
)

// Pair identifies a relationship: documents of Parent embed Child.
type Pair struct {
	Child  string
	Parent string
}

// Spec is a registered relationship, along with how its tasks run.
type Spec struct {
	Child  string
	Parent string
	Mode   SyncMode
}

func (s Spec) Pair() Pair {
	return Pair{Child: s.Child, Parent: s.Parent}
}

// Registry records which parent kinds embed which child kinds. It is
// meant to live for the whole process.
type Registry struct {
	mutex      sync.RWMutex
	catalog    *Catalog
	lifecycle  *store.Lifecycle
	dispatcher *Dispatcher
	specs      map[Pair]Spec
	attached   map[Pair]bool
}

func NewRegistry(cat *Catalog, lc *store.Lifecycle, d *Dispatcher) *Registry {
	return &Registry{
		catalog:    cat,
		lifecycle:  lc,
		dispatcher: d,
		specs:      make(map[Pair]Spec),
		attached:   make(map[Pair]bool),
	}
}

// Register associates child with parent, running reindexing in the
// given mode.
func (r *Registry) Register(child, parent string, mode SyncMode) error {
	return r.Add(Spec{Child: child, Parent: parent, Mode: mode})
}

// Add installs the relationship. Both kinds must be known to the catalog,
// and the parent must have an Indexer. The child's save lifecycle gets a
// trigger for this pair the first time the pair is added; adding it again
// only updates the mode.
func (r *Registry) Add(s Spec) error {
	if err := r.catalog.Resolve(s.Child); err != nil {
		return err
	}
	if err := r.catalog.Resolve(s.Parent); err != nil {
		return err
	}
	if _, ok := r.catalog.Get(s.Parent); !ok {
		return &ConfigurationError{Kind: s.Parent, Reason: "parent kind has no indexer"}
	}
	if s.Mode != Inline && s.Mode != Deferred {
		return &ConfigurationError{Kind: s.Child, Reason: "invalid " + s.Mode.String()}
	}

	pair := s.Pair()
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.specs[pair] = s
	lg := log.WithFields(logrus.Fields{
		"child":  s.Child,
		"parent": s.Parent,
		"mode":   s.Mode,
	})
	if r.attached[pair] {
		lg.Debug("Relationship updated")
		return nil
	}
	r.attached[pair] = true
	r.lifecycle.AfterSave(s.Child, r.hook(pair))
	lg.Info("Relationship registered")
	return nil
}

// hook is what runs after a child save. A trigger which can't build a task
// is logged and skipped; the save itself stands.
func (r *Registry) hook(pair Pair) store.SaveHook {
	t := &Trigger{pair: pair, registry: r, dispatcher: r.dispatcher}
	return func(ctx context.Context, rec x.Record) error {
		err := t.Fire(ctx, rec)
		var perr *PreconditionError
		if errors.As(err, &perr) {
			x.LogErr(log, err).WithField("entity", rec.Entity()).
				Error("Skipping reindex dispatch")
			return nil
		}
		return err
	}
}

// ModeFor returns the mode of the relationship, Inline if never registered.
func (r *Registry) ModeFor(child, parent string) SyncMode {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if s, ok := r.specs[Pair{Child: child, Parent: parent}]; ok {
		return s.Mode
	}
	return Inline
}

func (r *Registry) Spec(child, parent string) (Spec, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	s, ok := r.specs[Pair{Child: child, Parent: parent}]
	return s, ok
}

// Specs returns all relationships, sorted by child and then parent.
func (r *Registry) Specs() []Spec {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	list := make([]Spec, 0, len(r.specs))
	for _, s := range r.specs {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Child != list[j].Child {
			return list[i].Child < list[j].Child
		}
		return list[i].Parent < list[j].Parent
	})
	return list
}
