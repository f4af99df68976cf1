// api package provides the CRUD apis for data manipulation.
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/manishrjain/denorm/req"
	"github.com/manishrjain/denorm/store"
	"github.com/manishrjain/denorm/x"
	"github.com/sirupsen/logrus"
)

var log = x.Log("api")

// Update stores the create and update instructions, acting as the modifier
// to the entity Update relates to.
type Update struct {
	kind   string
	id     string
	source string
	edges  map[string]interface{}
	unset  map[string]bool
	NanoTs int64
}

// NewUpdate is the main entrypoint to updates. Returns back a Update
// object pointer, to run create and update operations on. An empty id
// creates a new entity with a generated id.
func NewUpdate(kind, id string) *Update {
	log.WithFields(logrus.Fields{
		"func": "NewUpdate",
		"kind": kind,
		"id":   id,
	}).Debug("Called")
	n := new(Update)
	n.kind = kind
	n.id = id
	n.NanoTs = time.Now().UnixNano()
	return n
}

// Get is an alias of NewUpdate, reading better for existing entities.
func Get(kind, id string) *Update {
	return NewUpdate(kind, id)
}

// SetSource sets the author of the update. Generally, the userid of the
// modifier.
func (n *Update) SetSource(source string) *Update {
	n.source = source
	return n
}

// Set allows you to set the property and value on the current entity.
// This would effectively replace any other value this property had.
func (n *Update) Set(property string, value interface{}) *Update {
	log.WithField(property, value).Debug("Set")
	if n.edges == nil {
		n.edges = make(map[string]interface{})
	}
	n.edges[property] = value
	delete(n.unset, property)
	return n
}

// Unset removes the property from the entity.
func (n *Update) Unset(property string) *Update {
	if n.unset == nil {
		n.unset = make(map[string]bool)
	}
	n.unset[property] = true
	delete(n.edges, property)
	return n
}

func (n *Update) Id() string {
	return n.id
}

func (n *Update) newId(ctx context.Context, c *req.Context) error {
	if c.NumCharsUnique <= 0 {
		return errors.New("Invalid req.Context.NumCharsUnique")
	}
	for idx := 0; ; idx++ { // Retry loop.
		id := x.UniqueString(c.NumCharsUnique)
		log.WithField("id", id).Debug("Checking availability of new id")
		_, err := c.Store.Get(ctx, n.kind, id)
		if err == store.ErrNotFound {
			n.id = id
			return nil
		}
		if err != nil {
			return err
		}
		if idx >= 30 {
			return errors.New("Unable to find new id")
		}
	}
}

// Execute merges the update onto the current state of the entity, stores
// it, and then runs the after save hooks of the entity kind. Hooks only run
// once the record is persisted; their errors are returned, but the record
// stays saved.
func (n *Update) Execute(ctx context.Context, c *req.Context) error {
	if c == nil || c.Store == nil {
		return errors.New("No store set in req.Context")
	}
	if len(n.kind) == 0 {
		return errors.New("No kind specified")
	}
	if len(n.source) == 0 {
		return fmt.Errorf("No source specified for id: %v kind: %v", n.id, n.kind)
	}
	if len(n.edges) == 0 && len(n.unset) == 0 {
		return errors.New("No instructions generated")
	}

	rec := x.Record{Kind: n.kind, Id: n.id}
	if len(n.id) == 0 {
		if err := n.newId(ctx, c); err != nil {
			return err
		}
		rec.Id = n.id
	} else {
		prev, err := c.Store.Get(ctx, n.kind, n.id)
		switch {
		case err == store.ErrNotFound:
		case err != nil:
			x.LogErr(log, err).WithField("entity", rec.Entity()).Error("While reading entity")
			return err
		default:
			rec = prev
		}
	}

	if rec.Values == nil {
		rec.Values = make(map[string]interface{})
	}
	for pred, val := range n.edges {
		rec.Values[pred] = val
	}
	for pred := range n.unset {
		delete(rec.Values, pred)
	}
	// Versions only move forward, even if clocks don't.
	if n.NanoTs <= rec.NanoTs {
		n.NanoTs = rec.NanoTs + 1
	}
	rec.NanoTs = n.NanoTs
	rec.Source = n.source

	if err := c.Store.Put(ctx, rec); err != nil {
		return err
	}
	log.WithField("entity", rec.Entity()).Debug("Stored")

	if c.Lifecycle == nil {
		return nil
	}
	return c.Lifecycle.Fire(ctx, rec)
}

// Delete removes an entity. Deletion does not run the save hooks.
type Delete struct {
	kind string
	id   string
}

func NewDelete(kind, id string) *Delete {
	return &Delete{kind: kind, id: id}
}

func (d *Delete) Execute(ctx context.Context, c *req.Context) error {
	if c == nil || c.Store == nil {
		return errors.New("No store set in req.Context")
	}
	if len(d.kind) == 0 || len(d.id) == 0 {
		return errors.New("No id or kind specified")
	}
	return c.Store.Delete(ctx, d.kind, d.id)
}
