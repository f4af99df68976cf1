package usage_test

import (
	"context"
	"fmt"
	"os"

	"github.com/manishrjain/denorm/api"
	"github.com/manishrjain/denorm/drivers/leveldb"
	"github.com/manishrjain/denorm/drivers/memsearch"
	"github.com/manishrjain/denorm/indexer"
	"github.com/manishrjain/denorm/req"
	"github.com/manishrjain/denorm/testx"
	"github.com/manishrjain/denorm/x"
)

var log = x.Log("usage")

func Example_reindex() {
	ctx := context.Background()
	path, err := os.MkdirTemp("", "denormldb_")
	if err != nil {
		x.LogErr(log, err).Fatal("Opening file")
		return
	}
	defer os.RemoveAll(path)
	st := new(leveldb.Leveldb)
	if err := st.Init(path); err != nil {
		x.LogErr(log, err).Fatal("Opening store")
		return
	}
	defer st.Close()
	engine := memsearch.New()

	// Articles embed the first name of their author.
	cat := indexer.NewCatalog(engine)
	cat.Define(ctx, testx.AuthorKind, testx.Author{})
	cat.Define(ctx, testx.ArticleKind, testx.Article{})

	c := req.NewContext(10) // 62^10 permutations
	c.Store = st
	d := indexer.NewDispatcher(indexer.NewFanOut(st, engine, cat), nil)
	reg := indexer.NewRegistry(cat, c.Lifecycle, d)
	if err := reg.Register(testx.AuthorKind, testx.ArticleKind, indexer.Inline); err != nil {
		x.LogErr(log, err).Fatal("Registering")
		return
	}

	api.Get(testx.AuthorKind, "1").SetSource("author").
		Set("first_name", "Jack").Execute(ctx, c)
	api.Get(testx.ArticleKind, "1").SetSource("author").
		Set("title", "Hello").Set("associated_model_id", "1").Execute(ctx, c)
	indexer.NewServer(st, engine, cat, 100).LoopOnce(ctx)

	docs, _ := engine.NewQuery(testx.ArticleKind).MatchExact("author.first_name", "Jack").Run(ctx)
	fmt.Println(len(docs))

	// Renaming the author reindexes the article within the save.
	err = api.Get(testx.AuthorKind, "1").SetSource("author").
		Set("first_name", "Jim").Execute(ctx, c)
	if err != nil {
		x.LogErr(log, err).Fatal("Commiting update")
		return
	}
	docs, _ = engine.NewQuery(testx.ArticleKind).MatchExact("author.first_name", "Jack").Run(ctx)
	fmt.Println(len(docs))
	docs, _ = engine.NewQuery(testx.ArticleKind).MatchExact("author.first_name", "Jim").Run(ctx)
	fmt.Println(docs[0].Id)
	// Output:
	// 1
	// 0
	// 1
}
