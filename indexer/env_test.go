package indexer_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/manishrjain/denorm/api"
	"github.com/manishrjain/denorm/drivers/leveldb"
	"github.com/manishrjain/denorm/drivers/memsearch"
	"github.com/manishrjain/denorm/indexer"
	"github.com/manishrjain/denorm/req"
	"github.com/manishrjain/denorm/search"
	"github.com/manishrjain/denorm/store"
	"github.com/manishrjain/denorm/testx"
	"github.com/manishrjain/denorm/x"
	"github.com/stretchr/testify/require"
)

// countingStore counts parent lookups.
type countingStore struct {
	store.Store
	mu    sync.Mutex
	finds int
}

func (s *countingStore) FindWhere(ctx context.Context, kind, field, value string) ([]x.Record, error) {
	s.mu.Lock()
	s.finds++
	s.mu.Unlock()
	return s.Store.FindWhere(ctx, kind, field, value)
}

func (s *countingStore) numFinds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds
}

// countingEngine counts bulk writes, and fails them on demand.
type countingEngine struct {
	search.Engine
	mu      sync.Mutex
	bulks   int
	fail    error
	itemErr error
}

func (e *countingEngine) BulkStore(ctx context.Context, docs []x.Doc) (*search.BulkResult, error) {
	e.mu.Lock()
	e.bulks++
	fail, itemErr := e.fail, e.itemErr
	e.mu.Unlock()

	if fail != nil {
		return nil, fail
	}
	if itemErr != nil {
		result := new(search.BulkResult)
		for _, doc := range docs {
			result.Items = append(result.Items,
				search.BulkItem{Kind: doc.Kind, Id: doc.Id, Err: itemErr})
		}
		return result, nil
	}
	return e.Engine.BulkStore(ctx, docs)
}

func (e *countingEngine) numBulks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bulks
}

func (e *countingEngine) setFail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = err
}

// syncQueue executes every task as soon as it's enqueued.
type syncQueue struct {
	d     *indexer.Dispatcher
	mu    sync.Mutex
	tasks []indexer.Task
}

func (q *syncQueue) Enqueue(ctx context.Context, task indexer.Task) error {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
	return q.d.Execute(ctx, task)
}

type env struct {
	ctx    context.Context
	c      *req.Context
	store  *countingStore
	mem    *memsearch.MemSearch
	engine *countingEngine
	cat    *indexer.Catalog
	disp   *indexer.Dispatcher
	queue  *syncQueue
	reg    *indexer.Registry
}

func newEnv(t *testing.T) *env {
	ldb := new(leveldb.Leveldb)
	require.NoError(t, ldb.Init(t.TempDir()))
	t.Cleanup(func() { ldb.Close() })

	e := &env{ctx: context.Background()}
	e.store = &countingStore{Store: ldb}
	e.mem = memsearch.New()
	e.engine = &countingEngine{Engine: e.mem}
	e.cat = indexer.NewCatalog(e.engine)
	require.NoError(t, e.cat.Define(e.ctx, testx.AuthorKind, testx.Author{}))
	require.NoError(t, e.cat.Define(e.ctx, testx.ArticleKind, testx.Article{}))

	fan := indexer.NewFanOut(e.store, e.engine, e.cat)
	e.queue = new(syncQueue)
	e.disp = indexer.NewDispatcher(fan, e.queue)
	e.queue.d = e.disp

	e.c = req.NewContext(10)
	e.c.Store = e.store
	e.reg = indexer.NewRegistry(e.cat, e.c.Lifecycle, e.disp)
	return e
}

func (e *env) saveAuthor(t *testing.T, id, name string) error {
	return api.Get(testx.AuthorKind, id).SetSource("test").
		Set("first_name", name).Set("last_name", "Smith").Execute(e.ctx, e.c)
}

func (e *env) saveArticle(t *testing.T, id, authorId string) {
	require.NoError(t, api.Get(testx.ArticleKind, id).SetSource("test").
		Set("title", "Title "+id).Set("content", "Lorem ipsum").
		Set("associated_model_id", authorId).Execute(e.ctx, e.c))
}

// indexAll writes the current documents of every defined kind.
func (e *env) indexAll(t *testing.T) {
	_, err := indexer.NewServer(e.store, e.engine, e.cat, 10).LoopOnce(e.ctx)
	require.NoError(t, err)
}

func (e *env) embeddedName(t *testing.T, articleId string) interface{} {
	doc, err := e.mem.Get(e.ctx, testx.ArticleKind, articleId)
	require.NoError(t, err)
	author, ok := doc.Data["author"].(map[string]interface{})
	require.True(t, ok, "article should embed its author")
	return author["first_name"]
}

func isFanOutError(err error) bool {
	var ferr *indexer.FanOutError
	return errors.As(err, &ferr)
}
