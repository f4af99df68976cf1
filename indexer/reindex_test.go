package indexer_test

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/manishrjain/denorm/api"
	"github.com/manishrjain/denorm/indexer"
	"github.com/manishrjain/denorm/store"
	"github.com/manishrjain/denorm/testx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRename(t *testing.T, mode indexer.SyncMode) *env {
	e := newEnv(t)
	require.NoError(t, e.reg.Register(testx.AuthorKind, testx.ArticleKind, mode))

	require.NoError(t, e.saveAuthor(t, "1", "Jack"))
	e.saveArticle(t, "1", "1")
	e.indexAll(t)
	require.Equal(t, "Jack", e.embeddedName(t, "1"))

	require.NoError(t, e.saveAuthor(t, "1", "Jim"))
	assert.Equal(t, "Jim", e.embeddedName(t, "1"))

	docs, err := e.mem.NewQuery(testx.ArticleKind).
		MatchExact("author.first_name", "Jim").Run(e.ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "1", docs[0].Id)
	return e
}

func TestRenameInline(t *testing.T) {
	e := runRename(t, indexer.Inline)
	assert.Empty(t, e.queue.tasks)
}

func TestRenameDeferred(t *testing.T) {
	e := runRename(t, indexer.Deferred)
	// One task for each save of the author.
	require.Len(t, e.queue.tasks, 2)
	assert.Equal(t, indexer.Task{
		ParentKind: testx.ArticleKind,
		ChildKind:  testx.AuthorKind,
		ChildId:    "1",
	}, e.queue.tasks[1])
}

func TestFanOutManyParents(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.reg.Register(testx.AuthorKind, testx.ArticleKind, indexer.Inline))
	require.NoError(t, e.saveAuthor(t, "a", "Jack"))
	for _, id := range []string{"p1", "p2", "p3"} {
		e.saveArticle(t, id, "a")
	}
	e.saveArticle(t, "other", "b")
	e.indexAll(t)

	before := e.engine.numBulks()
	require.NoError(t, e.saveAuthor(t, "a", "Jim"))
	assert.Equal(t, before+1, e.engine.numBulks(), "all parents go in a single bulk")
	for _, id := range []string{"p1", "p2", "p3"} {
		assert.Equal(t, "Jim", e.embeddedName(t, id))
	}
	doc, err := e.mem.Get(e.ctx, testx.ArticleKind, "other")
	require.NoError(t, err)
	assert.NotContains(t, doc.Data, "author")
}

func TestNoParents(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.reg.Register(testx.AuthorKind, testx.ArticleKind, indexer.Inline))

	require.NoError(t, e.saveAuthor(t, "lonely", "Jack"))
	assert.Equal(t, 1, e.store.numFinds())
	assert.Equal(t, 0, e.engine.numBulks())
}

func TestDoubleRegistration(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.reg.Register(testx.AuthorKind, testx.ArticleKind, indexer.Inline))
	require.NoError(t, e.reg.Register(testx.AuthorKind, testx.ArticleKind, indexer.Inline))
	assert.Equal(t, 1, e.c.Lifecycle.Num(testx.AuthorKind))

	require.NoError(t, e.saveAuthor(t, "a", "Jack"))
	e.saveArticle(t, "p", "a")
	finds, bulks := e.store.numFinds(), e.engine.numBulks()

	require.NoError(t, e.saveAuthor(t, "a", "Jim"))
	assert.Equal(t, finds+1, e.store.numFinds())
	assert.Equal(t, bulks+1, e.engine.numBulks())
}

func TestReRegistrationUpdatesMode(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.reg.Register(testx.AuthorKind, testx.ArticleKind, indexer.Inline))
	require.NoError(t, e.reg.Register(testx.AuthorKind, testx.ArticleKind, indexer.Deferred))
	assert.Equal(t, 1, e.c.Lifecycle.Num(testx.AuthorKind))

	require.NoError(t, e.saveAuthor(t, "a", "Jack"))
	assert.Len(t, e.queue.tasks, 1)
}

func TestIdempotentTask(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.saveAuthor(t, "a", "Jack"))
	e.saveArticle(t, "p", "a")

	task := indexer.Task{ParentKind: testx.ArticleKind, ChildKind: testx.AuthorKind, ChildId: "a"}
	require.NoError(t, e.disp.Execute(e.ctx, task))
	doc, err := e.mem.Get(e.ctx, testx.ArticleKind, "p")
	require.NoError(t, err)
	first, err := json.Marshal(doc)
	require.NoError(t, err)

	require.NoError(t, e.disp.Execute(e.ctx, task))
	doc, err = e.mem.Get(e.ctx, testx.ArticleKind, "p")
	require.NoError(t, err)
	second, err := json.Marshal(doc)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Len(t, e.mem.All(), 1)
}

func TestTaskAfterDelete(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.reg.Register(testx.AuthorKind, testx.ArticleKind, indexer.Deferred))
	require.NoError(t, e.saveAuthor(t, "a", "Jack"))
	e.saveArticle(t, "p", "a")
	require.NoError(t, e.saveAuthor(t, "a", "Jim"))
	require.Equal(t, "Jim", e.embeddedName(t, "p"))

	// A task still queued when the author goes away.
	require.NoError(t, api.NewDelete(testx.AuthorKind, "a").Execute(e.ctx, e.c))
	require.NoError(t, e.disp.Execute(e.ctx, e.queue.tasks[len(e.queue.tasks)-1]))

	doc, err := e.mem.Get(e.ctx, testx.ArticleKind, "p")
	require.NoError(t, err)
	assert.NotContains(t, doc.Data, "author")
}

func TestBulkFailure(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.reg.Register(testx.AuthorKind, testx.ArticleKind, indexer.Inline))
	require.NoError(t, e.saveAuthor(t, "a", "Jack"))
	e.saveArticle(t, "p", "a")
	e.indexAll(t)

	down := errors.New("connection refused")
	e.engine.setFail(down)
	err := e.saveAuthor(t, "a", "Jim")
	require.Error(t, err)
	assert.True(t, isFanOutError(err))
	assert.ErrorIs(t, err, down)

	rec, err := e.store.Get(e.ctx, testx.AuthorKind, "a")
	require.NoError(t, err)
	assert.Equal(t, "Jim", rec.Values["first_name"])
	assert.Equal(t, "Jack", e.embeddedName(t, "p"))
}

func TestBulkItemFailure(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.reg.Register(testx.AuthorKind, testx.ArticleKind, indexer.Inline))
	require.NoError(t, e.saveAuthor(t, "a", "Jack"))
	e.saveArticle(t, "p", "a")

	rejected := errors.New("mapper_parsing_exception")
	e.engine.itemErr = rejected
	err := e.saveAuthor(t, "a", "Jim")
	assert.True(t, isFanOutError(err))
	assert.ErrorIs(t, err, rejected)
}

func TestDeferredWithoutQueue(t *testing.T) {
	e := newEnv(t)
	fan := indexer.NewFanOut(e.store, e.engine, e.cat)
	reg := indexer.NewRegistry(e.cat, e.c.Lifecycle, indexer.NewDispatcher(fan, nil))
	require.NoError(t, reg.Register(testx.AuthorKind, testx.ArticleKind, indexer.Deferred))

	err := e.saveAuthor(t, "a", "Jack")
	var eerr *indexer.EnqueueError
	require.True(t, errors.As(err, &eerr))
	assert.ErrorIs(t, err, indexer.ErrNoQueue)

	_, err = e.store.Get(e.ctx, testx.AuthorKind, "a")
	assert.NoError(t, err)
}

func TestDeleteDoesNotTrigger(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.reg.Register(testx.AuthorKind, testx.ArticleKind, indexer.Inline))
	require.NoError(t, e.saveAuthor(t, "a", "Jack"))
	finds := e.store.numFinds()

	require.NoError(t, api.NewDelete(testx.AuthorKind, "a").Execute(e.ctx, e.c))
	assert.Equal(t, finds, e.store.numFinds())
	_, err := e.store.Get(e.ctx, testx.AuthorKind, "a")
	assert.Equal(t, store.ErrNotFound, err)
}

func TestCustomForeignKey(t *testing.T) {
	e := newEnv(t)
	cat := indexer.NewCatalog(e.engine)
	require.NoError(t, cat.Declare(testx.AuthorKind))
	require.NoError(t, cat.Define(e.ctx, testx.ArticleKind, testx.Article{AuthorKey: "writer"}))
	disp := indexer.NewDispatcher(indexer.NewFanOut(e.store, e.engine, cat), nil)
	reg := indexer.NewRegistry(cat, e.c.Lifecycle, disp)
	require.NoError(t, reg.Register(testx.AuthorKind, testx.ArticleKind, indexer.Inline))

	require.NoError(t, e.saveAuthor(t, "a", "Jack"))
	require.NoError(t, api.Get(testx.ArticleKind, "p").SetSource("test").
		Set("title", "T").Set("writer", "a").Execute(e.ctx, e.c))
	require.NoError(t, e.saveAuthor(t, "a", "Jim"))
	assert.Equal(t, "Jim", e.embeddedName(t, "p"))
}
