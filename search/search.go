// Package search provides an interface for search engine operations, to
// allow for easy extensibility to support various search engines.
package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/manishrjain/denorm/x"
)

var log = x.Log("search")

var ErrNotFound = errors.New("Document not found")

// Mapping declares the properties of the documents stored in an index.
// It is handed as is to the search engine at index creation time.
type Mapping map[string]interface{}

// BulkItem is the outcome of writing a single document in a bulk request.
type BulkItem struct {
	Kind string
	Id   string
	Err  error
}

// BulkResult carries the per document outcome of a BulkStore call.
type BulkResult struct {
	Items []BulkItem
}

// Failed returns the items that were not stored.
func (br *BulkResult) Failed() []BulkItem {
	if br == nil {
		return nil
	}
	var failed []BulkItem
	for _, item := range br.Items {
		if item.Err != nil {
			failed = append(failed, item)
		}
	}
	return failed
}

// Query runs exact match queries over the documents of one kind.
type Query interface {
	// MatchExact filters the results to docs whose data field equals value.
	MatchExact(field string, value interface{}) Query

	// Limit limits the number of results to num.
	Limit(num int) Query

	// Run runs the query and returns results and error, if any.
	Run(ctx context.Context) ([]x.Doc, error)
}

// All the search operations are run via this Engine interface.
// Implement this interface to add support for a search engine.
type Engine interface {
	// Init is used to initialize the search engine driver.
	Init(args ...string) error

	// Exists reports whether the index is present.
	Exists(ctx context.Context, index string) (bool, error)

	// Create creates the index with the given mapping.
	Create(ctx context.Context, index string, m Mapping) error

	// BulkStore writes all the docs in a single request. Each doc replaces
	// whatever is stored under its kind and id, whatever its NanoTs. Docs
	// are regenerated from current data, so the last write is the freshest.
	// A non-nil error means the request itself failed; per document
	// failures are reported via BulkResult.
	BulkStore(ctx context.Context, docs []x.Doc) (*BulkResult, error)

	// Get retrieves a single document, or ErrNotFound.
	Get(ctx context.Context, kind, id string) (x.Doc, error)

	// NewQuery creates a new query object, to return results of type kind.
	NewQuery(kind string) Query
}

// IndexName returns the name of the index holding docs of the given kind.
func IndexName(kind string) string {
	return strings.ToLower(x.Underscore(kind))
}

var (
	mutex   sync.RWMutex
	engines = make(map[string]Engine)
)

// Register makes a search engine driver available under the given name.
func Register(name string, driver Engine) {
	mutex.Lock()
	defer mutex.Unlock()
	if driver == nil {
		log.WithField("driver", name).Fatal("Nil search engine")
		return
	}
	if _, dup := engines[name]; dup {
		log.WithField("driver", name).Fatal("Register called twice")
		return
	}
	log.WithField("driver", name).Debug("Registering search engine")
	engines[name] = driver
}

// Get returns the search engine registered under name.
func Get(name string) (Engine, bool) {
	mutex.RLock()
	defer mutex.RUnlock()
	driver, ok := engines[name]
	return driver, ok
}

// Drivers returns the sorted names of all registered engines.
func Drivers() []string {
	mutex.RLock()
	defer mutex.RUnlock()

	var list []string
	for name := range engines {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}
