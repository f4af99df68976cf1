// Package main walks through a small social network: a user writes a post,
// another user comments on it, and then both the user and the post get
// renamed. Renames are propagated to the embedding documents over a goque
// job queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/manishrjain/denorm/api"
	"github.com/manishrjain/denorm/drivers/leveldb"
	"github.com/manishrjain/denorm/drivers/memsearch"
	"github.com/manishrjain/denorm/example/kinds"
	"github.com/manishrjain/denorm/indexer"
	"github.com/manishrjain/denorm/queue"
	"github.com/manishrjain/denorm/req"
	"github.com/manishrjain/denorm/x"
)

var debug = flag.Bool("debug", false, "Log at debug level")

var log = x.Log("social")

const sep = "----------------------------------"

func printDoc(ctx context.Context, ms *memsearch.MemSearch, kind, id string) {
	doc, err := ms.Get(ctx, kind, id)
	if err != nil {
		x.LogErr(log, err).Fatal("While reading doc")
	}
	js, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		x.LogErr(log, err).Fatal("While encoding doc")
	}
	fmt.Printf("\n%s\n%s\n%s\n", sep, string(js), sep)
}

func main() {
	flag.Parse()
	if *debug {
		x.SetLevel("debug")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir, err := os.MkdirTemp("", "denorm_social_")
	if err != nil {
		x.LogErr(log, err).Fatal("Opening dir")
	}
	defer os.RemoveAll(dir)

	l := new(leveldb.Leveldb)
	l.SetBloomFilter(13)
	if err := l.Init(filepath.Join(dir, "store")); err != nil {
		x.LogErr(log, err).Fatal("Opening store")
	}
	defer l.Close()
	ms := memsearch.New()

	cat := indexer.NewCatalog(ms)
	if err := kinds.Define(ctx, cat); err != nil {
		x.LogErr(log, err).Fatal("Defining kinds")
	}
	q, err := queue.OpenGoque(filepath.Join(dir, "queue"),
		queue.Options{Workers: 2, PollInterval: 10 * time.Millisecond})
	if err != nil {
		x.LogErr(log, err).Fatal("Opening queue")
	}
	defer q.Close()

	c := req.NewContext(10)
	c.Store = l
	d := indexer.NewDispatcher(indexer.NewFanOut(l, ms, cat), q)
	reg := indexer.NewRegistry(cat, c.Lifecycle, d)
	if err := reg.Register(kinds.User, kinds.Post, indexer.Deferred); err != nil {
		x.LogErr(log, err).Fatal("Registering")
	}
	if err := reg.Register(kinds.Post, kinds.Comment, indexer.Deferred); err != nil {
		x.LogErr(log, err).Fatal("Registering")
	}
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx, d) }()

	// A user writes a post, and another one comments on it.
	author := api.NewUpdate(kinds.User, "").SetSource("signup").Set("name", "Jack")
	post := api.NewUpdate(kinds.Post, "")
	comment := api.NewUpdate(kinds.Comment, "")
	if err := author.Execute(ctx, c); err != nil {
		x.LogErr(log, err).Fatal("Storing user")
	}
	post.SetSource(author.Id()).Set("user_id", author.Id()).
		Set("title", "Cat videos").Set("body", "You can search for cat videos here")
	if err := post.Execute(ctx, c); err != nil {
		x.LogErr(log, err).Fatal("Storing post")
	}
	comment.SetSource(x.UniqueString(10)).Set("post_id", post.Id()).Set("body", "Nice!")
	if err := comment.Execute(ctx, c); err != nil {
		x.LogErr(log, err).Fatal("Storing comment")
	}

	// Index what's there so far.
	if _, err := indexer.NewServer(l, ms, cat, 100).LoopOnce(ctx); err != nil {
		x.LogErr(log, err).Fatal("Indexing")
	}
	fmt.Println("Stored a User, Post and Comment")
	printDoc(ctx, ms, kinds.Post, post.Id())
	printDoc(ctx, ms, kinds.Comment, comment.Id())

	// Now rename both. The saves return right away; the documents embedding
	// them are updated by the queue workers.
	if err := api.Get(kinds.User, author.Id()).SetSource(author.Id()).
		Set("name", "Jim").Execute(ctx, c); err != nil {
		x.LogErr(log, err).Fatal("Renaming user")
	}
	if err := api.Get(kinds.Post, post.Id()).SetSource(author.Id()).
		Set("title", "Dog videos").Execute(ctx, c); err != nil {
		x.LogErr(log, err).Fatal("Renaming post")
	}
	for q.Length() > 0 {
		time.Sleep(10 * time.Millisecond)
	}
	// Let the last task taken off the queue finish.
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	fmt.Println("Renamed the User and the Post")
	printDoc(context.Background(), ms, kinds.Post, post.Id())
	printDoc(context.Background(), ms, kinds.Comment, comment.Id())
}
