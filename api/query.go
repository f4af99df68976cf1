package api

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/manishrjain/denorm/req"
	"github.com/manishrjain/denorm/x"
)

// Query reads the current state of a single entity.
type Query struct {
	kind string
	id   string
}

// Result stores the final entity state retrieved from Store.
type Result struct {
	Id     string
	Kind   string
	Source string
	NanoTs int64
	Values map[string]interface{}
}

func NewQuery(kind, id string) *Query {
	q := new(Query)
	q.kind = kind
	q.id = id
	return q
}

// Run returns store.ErrNotFound for missing entities.
func (q *Query) Run(ctx context.Context, c *req.Context) (*Result, error) {
	rec, err := c.Store.Get(ctx, q.kind, q.id)
	if err != nil {
		return nil, err
	}
	return &Result{
		Id:     rec.Id,
		Kind:   rec.Kind,
		Source: rec.Source,
		NanoTs: rec.NanoTs,
		Values: rec.Values,
	}, nil
}

// ToMap flattens the result: id, kind and source next to the values.
func (r *Result) ToMap() map[string]interface{} {
	data := make(map[string]interface{})
	for k, v := range r.Values {
		data[k] = v
	}
	data["id"] = r.Id
	data["kind"] = r.Kind
	if len(r.Source) > 0 {
		data["source"] = r.Source
	}
	return data
}

func (r *Result) ToJson() ([]byte, error) {
	return json.Marshal(r.ToMap())
}

// Entity returns the identity of the result.
func (r *Result) Entity() x.Entity {
	return x.Entity{Kind: r.Kind, Id: r.Id}
}
