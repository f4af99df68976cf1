// Package kinds defines the entity kinds of a small social network: users
// write posts, and comment on them. Posts embed their author's name, and
// comments embed the title of their post, so renaming a user or a post
// needs the documents embedding them reindexed.
package kinds

import (
	"context"

	"github.com/manishrjain/denorm/indexer"
	"github.com/manishrjain/denorm/search"
	"github.com/manishrjain/denorm/store"
	"github.com/manishrjain/denorm/x"
)

const (
	User    = "User"
	Post    = "Post"
	Comment = "Comment"
)

var keyword = map[string]interface{}{"type": "keyword"}
var text = map[string]interface{}{"type": "text"}

type UserIndexer struct{}

func (UserIndexer) Mapping() search.Mapping {
	return search.Mapping{"name": keyword, "email": keyword}
}

func (UserIndexer) Regenerate(ctx context.Context, st store.Store, rec x.Record) (x.Doc, error) {
	return x.Doc{
		Kind:   rec.Kind,
		Id:     rec.Id,
		NanoTs: rec.NanoTs,
		Data: map[string]interface{}{
			"name":  rec.Values["name"],
			"email": rec.Values["email"],
		},
	}, nil
}

type PostIndexer struct{}

func (PostIndexer) Mapping() search.Mapping {
	return search.Mapping{
		"title": text,
		"body":  text,
		"author": map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"id": keyword, "name": keyword},
		},
	}
}

func (PostIndexer) Regenerate(ctx context.Context, st store.Store, rec x.Record) (x.Doc, error) {
	doc := x.Doc{Kind: rec.Kind, Id: rec.Id, NanoTs: rec.NanoTs}
	doc.Data = map[string]interface{}{
		"title": rec.Values["title"],
		"body":  rec.Values["body"],
	}
	return doc, embed(ctx, st, &doc, rec, "user_id", User, "author", "name")
}

type CommentIndexer struct{}

func (CommentIndexer) Mapping() search.Mapping {
	return search.Mapping{
		"body": text,
		"post": map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"id": keyword, "title": text},
		},
	}
}

func (CommentIndexer) Regenerate(ctx context.Context, st store.Store, rec x.Record) (x.Doc, error) {
	doc := x.Doc{Kind: rec.Kind, Id: rec.Id, NanoTs: rec.NanoTs}
	doc.Data = map[string]interface{}{"body": rec.Values["body"]}
	return doc, embed(ctx, st, &doc, rec, "post_id", Post, "post", "title")
}

// embed reads the entity referred to by rec's fk field, and copies its
// field into doc under name. NanoTs moves up to the embedded
// entity's.
func embed(ctx context.Context, st store.Store, doc *x.Doc, rec x.Record,
	fk, kind, name, field string) error {

	id, ok := rec.String(fk)
	if !ok {
		return nil
	}
	other, err := st.Get(ctx, kind, id)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	doc.Data[name] = map[string]interface{}{
		"id":  other.Id,
		field: other.Values[field],
	}
	if other.NanoTs > doc.NanoTs {
		doc.NanoTs = other.NanoTs
	}
	return nil
}

// Define adds all the kinds to the catalog.
func Define(ctx context.Context, cat *indexer.Catalog) error {
	if err := cat.Define(ctx, User, UserIndexer{}); err != nil {
		return err
	}
	if err := cat.Define(ctx, Post, PostIndexer{}); err != nil {
		return err
	}
	return cat.Define(ctx, Comment, CommentIndexer{})
}
