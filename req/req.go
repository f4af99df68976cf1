// This package is the initialization point for the api.
// In particular, in your init (/main) function, the flow
// is to create a req.Context and fill in required options:
// the length for unique strings generated to assign to new
// entities, the storage system, and the save lifecycle which
// reindexing hooks attach to.
package req

import "github.com/manishrjain/denorm/store"

type Context struct {
	NumCharsUnique int // 62^num unique strings
	Store          store.Store
	Lifecycle      *store.Lifecycle
}

// NewContext returns a Context with a fresh lifecycle and no store set.
func NewContext(numChars int) *Context {
	c := new(Context)
	c.NumCharsUnique = numChars
	c.Lifecycle = store.NewLifecycle()
	return c
}
