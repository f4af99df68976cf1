package indexer

import (
	"context"
	"sort"
	"sync"

	"github.com/manishrjain/denorm/search"
	"github.com/manishrjain/denorm/store"
	"github.com/manishrjain/denorm/x"
)

var log = x.Log("indexer")

// Indexer regenerates the search document of an index-resident kind.
type Indexer interface {
	// Mapping returns the schema of the kind's index.
	Mapping() search.Mapping

	// Regenerate builds the full document for the record. Any embedded
	// entity must be read fresh from the store, never taken from a cache,
	// so that the document reflects the latest state of everything in it.
	Regenerate(ctx context.Context, st store.Store, rec x.Record) (x.Doc, error)
}

// ForeignKeyer is implemented by indexers which embed a child kind under a
// foreign key other than <child_kind>_id. For e.g. an Article embedding an
// AssociatedModel as its author, keyed by author_id.
type ForeignKeyer interface {
	ForeignKey(childKind string) string
}

// ForeignKey returns the field of the parent holding the id of the child.
func ForeignKey(parent Indexer, childKind string) string {
	if fk, ok := parent.(ForeignKeyer); ok {
		if key := fk.ForeignKey(childKind); len(key) > 0 {
			return key
		}
	}
	return x.Underscore(childKind) + "_id"
}

// Catalog holds the entity kinds known to the system.
type Catalog struct {
	mutex    sync.RWMutex
	engine   search.Engine
	indexers map[string]Indexer
	declared map[string]bool
}

// NewCatalog returns an empty Catalog. Index creation for defined kinds
// goes to engine, which may be nil.
func NewCatalog(engine search.Engine) *Catalog {
	return &Catalog{
		engine:   engine,
		indexers: make(map[string]Indexer),
		declared: make(map[string]bool),
	}
}

// Define registers an index-resident kind, and creates its index if it
// doesn't exist yet.
func (c *Catalog) Define(ctx context.Context, kind string, idx Indexer) error {
	if len(kind) == 0 {
		return &ConfigurationError{Kind: kind, Reason: "empty kind"}
	}
	if idx == nil {
		return &ConfigurationError{Kind: kind, Reason: "nil indexer"}
	}
	c.mutex.Lock()
	if _, dup := c.indexers[kind]; dup {
		c.mutex.Unlock()
		return &ConfigurationError{Kind: kind,
			Reason: "another indexer is already handling the same entity kind"}
	}
	c.indexers[kind] = idx
	c.declared[kind] = true
	c.mutex.Unlock()

	log.WithField("kind", kind).Debug("Defined kind")
	c.ensureIndex(ctx, kind, idx.Mapping())
	return nil
}

// Declare registers a kind which has no search document of its own, but
// can be embedded in other documents.
func (c *Catalog) Declare(kind string) error {
	if len(kind) == 0 {
		return &ConfigurationError{Kind: kind, Reason: "empty kind"}
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.declared[kind] = true
	return nil
}

// ensureIndex is best effort. A search engine that's down at startup must
// not prevent the process from coming up.
func (c *Catalog) ensureIndex(ctx context.Context, kind string, m search.Mapping) {
	if c.engine == nil {
		return
	}
	index := search.IndexName(kind)
	exists, err := c.engine.Exists(ctx, index)
	if err != nil {
		x.LogErr(log, err).WithField("index", index).
			Warn("Skipping index creation, cannot connect to search engine")
		return
	}
	if exists {
		return
	}
	if err := c.engine.Create(ctx, index, m); err != nil {
		x.LogErr(log, err).WithField("index", index).Warn("Skipping index creation")
		return
	}
	log.WithField("index", index).Info("Created index")
}

// Resolve returns a ConfigurationError for kinds never defined nor declared.
func (c *Catalog) Resolve(kind string) error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if !c.declared[kind] {
		return &ConfigurationError{Kind: kind, Reason: "unknown entity kind"}
	}
	return nil
}

func (c *Catalog) Get(kind string) (idx Indexer, present bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	idx, present = c.indexers[kind]
	return idx, present
}

// Kinds returns the sorted index-resident kinds.
func (c *Catalog) Kinds() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var list []string
	for kind := range c.indexers {
		list = append(list, kind)
	}
	sort.Strings(list)
	return list
}

func (c *Catalog) Num() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.indexers)
}
