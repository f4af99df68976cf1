// Package memsearch is an in-memory search engine, useful for tests and
// single process setups. Documents are keyed by kind and id.
package memsearch

import (
	"context"
	"sync"

	"github.com/manishrjain/denorm/search"
	"github.com/manishrjain/denorm/x"
)

var log = x.Log("memsearch")

type MemSearch struct {
	sync.RWMutex
	docs    map[string]x.Doc
	indices map[string]search.Mapping
}

type MemQuery struct {
	kind string
	Docs []x.Doc
}

// New returns an initialized MemSearch.
func New() *MemSearch {
	ms := new(MemSearch)
	ms.Init()
	return ms
}

func (ms *MemSearch) Init(args ...string) error {
	ms.Lock()
	defer ms.Unlock()
	ms.docs = make(map[string]x.Doc)
	ms.indices = make(map[string]search.Mapping)
	return nil
}

func (ms *MemSearch) Exists(ctx context.Context, index string) (bool, error) {
	ms.RLock()
	defer ms.RUnlock()
	_, ok := ms.indices[index]
	return ok, nil
}

func (ms *MemSearch) Create(ctx context.Context, index string, m search.Mapping) error {
	ms.Lock()
	defer ms.Unlock()
	ms.indices[index] = m
	log.WithField("index", index).Debug("Created index")
	return nil
}

// All returns a copy of every stored doc.
func (ms *MemSearch) All() []x.Doc {
	ms.RLock()
	defer ms.RUnlock()
	var dup []x.Doc
	for _, doc := range ms.docs {
		dup = append(dup, doc)
	}
	return dup
}

func key(kind, id string) string {
	return kind + ":" + id
}

// BulkStore replaces each doc whole.
func (ms *MemSearch) BulkStore(ctx context.Context, docs []x.Doc) (*search.BulkResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms.Lock()
	defer ms.Unlock()

	result := new(search.BulkResult)
	for _, doc := range docs {
		ms.docs[key(doc.Kind, doc.Id)] = copyDoc(doc)
		result.Items = append(result.Items, search.BulkItem{Kind: doc.Kind, Id: doc.Id})
	}
	log.WithField("num_docs", len(docs)).Debug("Bulk stored")
	return result, nil
}

func (ms *MemSearch) Get(ctx context.Context, kind, id string) (x.Doc, error) {
	ms.RLock()
	defer ms.RUnlock()
	doc, ok := ms.docs[key(kind, id)]
	if !ok {
		return x.Doc{}, search.ErrNotFound
	}
	return copyDoc(doc), nil
}

func (ms *MemSearch) NewQuery(kind string) search.Query {
	ms.RLock()
	defer ms.RUnlock()
	mq := &MemQuery{kind: kind}
	for _, doc := range ms.docs {
		if doc.Kind != kind {
			continue
		}
		mq.Docs = append(mq.Docs, copyDoc(doc))
	}
	return mq
}

func (mq *MemQuery) MatchExact(field string, value interface{}) search.Query {
	want := x.Stringify(value)
	filtered := mq.Docs[:0]
	for _, doc := range mq.Docs {
		if val, present := lookup(doc.Data, field); present && x.Stringify(val) == want {
			filtered = append(filtered, doc)
		}
	}
	mq.Docs = filtered
	log.WithField("field", field).Debug("Done Matching")
	return mq
}

func (mq *MemQuery) Limit(num int) search.Query {
	if len(mq.Docs) > num {
		mq.Docs = mq.Docs[0:num]
	}
	return mq
}

func (mq *MemQuery) Run(ctx context.Context) ([]x.Doc, error) {
	return mq.Docs, nil
}

func init() {
	log.Debug("Initing memsearch")
	search.Register("memsearch", New())
}
