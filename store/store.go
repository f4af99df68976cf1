// Package store provides an interface for data store operations, to
// allow for easy extensibility to support various datastores.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/manishrjain/denorm/x"
)

var log = x.Log("store")

var ErrNotFound = errors.New("Record not found")

// All the data CRUD operations are run via this Store interface.
// Implement this interface to add support for a datastore.
type Store interface {
	// Init is used to initialize store driver.
	Init(args ...string) error

	// Put writes the record, replacing any previous state of the entity.
	Put(ctx context.Context, rec x.Record) error

	// Get returns the current state of the entity, or ErrNotFound.
	Get(ctx context.Context, kind, id string) (x.Record, error)

	// Delete removes the entity. Deleting a missing entity is not an error.
	Delete(ctx context.Context, kind, id string) error

	// FindWhere returns all records of the given kind whose field equals
	// value. Field values are compared in their string form, so numeric ids
	// match their string counterparts. No ordering is guaranteed.
	FindWhere(ctx context.Context, kind, field, value string) ([]x.Record, error)

	// Iterate returns up to num records of the given kind, ordered by id,
	// starting right after afterId. An empty afterId starts from the
	// beginning. Fewer than num records means the end has been reached.
	Iterate(ctx context.Context, kind, afterId string, num int) ([]x.Record, error)

	// Close releases any resources held by the driver.
	Close() error
}

var (
	mutex   sync.RWMutex
	drivers = make(map[string]Store)
)

// Register makes a store driver available under the given name. Drivers
// call it from their init function.
func Register(name string, driver Store) {
	mutex.Lock()
	defer mutex.Unlock()
	if driver == nil {
		log.WithField("driver", name).Fatal("Nil store")
		return
	}
	if _, dup := drivers[name]; dup {
		log.WithField("driver", name).Fatal("Register called twice")
		return
	}
	log.WithField("driver", name).Debug("Registering store driver")
	drivers[name] = driver
}

// Get returns the driver registered under name.
func Get(name string) (Store, bool) {
	mutex.RLock()
	defer mutex.RUnlock()
	driver, ok := drivers[name]
	return driver, ok
}

// Drivers returns the sorted names of all registered drivers.
func Drivers() []string {
	mutex.RLock()
	defer mutex.RUnlock()

	var list []string
	for name := range drivers {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// Matches reports whether the record holds value under field. Drivers
// which can't push the comparison down to the database use it to filter.
func Matches(rec x.Record, field, value string) bool {
	v, ok := rec.String(field)
	return ok && v == value
}
