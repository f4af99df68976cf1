// Package testx holds fixtures and conformance checks shared by the tests
// of the store drivers, search engines and the indexer.
package testx

import (
	"context"
	"testing"

	"github.com/manishrjain/denorm/search"
	"github.com/manishrjain/denorm/store"
	"github.com/manishrjain/denorm/x"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	AuthorKind  = "AssociatedModel"
	ArticleKind = "ArticleWithAssociation"
)

// Author is the embedded child in the fixtures. It is indexed on its own too.
type Author struct{}

func (Author) Mapping() search.Mapping {
	return search.Mapping{
		"first_name": map[string]interface{}{"type": "keyword"},
		"last_name":  map[string]interface{}{"type": "keyword"},
	}
}

func (Author) Regenerate(ctx context.Context, st store.Store, rec x.Record) (x.Doc, error) {
	doc := x.Doc{Kind: rec.Kind, Id: rec.Id, NanoTs: rec.NanoTs}
	doc.Data = map[string]interface{}{
		"first_name": rec.Values["first_name"],
		"last_name":  rec.Values["last_name"],
	}
	return doc, nil
}

// Article embeds the first name of its author. AuthorKey names the field
// holding the author id; it defaults to associated_model_id.
type Article struct {
	AuthorKey string
}

func (a Article) fk() string {
	if len(a.AuthorKey) > 0 {
		return a.AuthorKey
	}
	return "associated_model_id"
}

func (a Article) ForeignKey(childKind string) string {
	if childKind == AuthorKind {
		return a.fk()
	}
	return ""
}

func (Article) Mapping() search.Mapping {
	return search.Mapping{
		"title":   map[string]interface{}{"type": "text"},
		"content": map[string]interface{}{"type": "text"},
		"author": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"first_name": map[string]interface{}{"type": "keyword"},
			},
		},
	}
}

// Regenerate re-reads the author from the store, so the embedded snapshot
// always reflects its current state.
func (a Article) Regenerate(ctx context.Context, st store.Store, rec x.Record) (x.Doc, error) {
	doc := x.Doc{Kind: rec.Kind, Id: rec.Id, NanoTs: rec.NanoTs}
	doc.Data = map[string]interface{}{
		"title":   rec.Values["title"],
		"content": rec.Values["content"],
	}
	aid, ok := rec.String(a.fk())
	if !ok {
		return doc, nil
	}
	author, err := st.Get(ctx, AuthorKind, aid)
	if err == store.ErrNotFound {
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	doc.Data["author"] = map[string]interface{}{
		"first_name": author.Values["first_name"],
	}
	if author.NanoTs > doc.NanoTs {
		doc.NanoTs = author.NanoTs
	}
	return doc, nil
}

var galaxies = [...]string{
	"sombrero galaxy", "messier 64", "2masx",
	"whirlpool galaxy", "ngc 123", "supernova",
	"galaxy ngc 1512", "ngc 3370", "m81",
}

func galaxyDocs(ts int64) []x.Doc {
	var docs []x.Doc
	for idx, name := range galaxies {
		docs = append(docs, x.Doc{
			Kind:   "Galaxy",
			Id:     name,
			NanoTs: ts,
			Data:   map[string]interface{}{"name": name, "pos": idx},
		})
	}
	return docs
}

// RunBulkStore checks the search.Engine contract: bulk writes replace whole
// documents regardless of their NanoTs, and exact match queries see the
// stored docs.
func RunBulkStore(t *testing.T, e search.Engine, refresh func()) {
	ctx := context.Background()
	index := search.IndexName("Galaxy")
	if ok, err := e.Exists(ctx, index); err == nil && !ok {
		require.NoError(t, e.Create(ctx, index, search.Mapping{
			"name": map[string]interface{}{"type": "keyword"},
		}))
	}

	result, err := e.BulkStore(ctx, galaxyDocs(100))
	require.NoError(t, err)
	assert.Len(t, result.Items, len(galaxies))
	assert.Empty(t, result.Failed())

	// Writing the same docs again is idempotent.
	result, err = e.BulkStore(ctx, galaxyDocs(100))
	require.NoError(t, err)
	assert.Empty(t, result.Failed())

	replaced := x.Doc{Kind: "Galaxy", Id: "m81", NanoTs: 200,
		Data: map[string]interface{}{"name": "bode's galaxy"}}
	result, err = e.BulkStore(ctx, []x.Doc{replaced})
	require.NoError(t, err)
	assert.Empty(t, result.Failed())

	// A lower NanoTs still replaces, e.g. after an embedded entity is deleted.
	older := x.Doc{Kind: "Galaxy", Id: "m81", NanoTs: 150,
		Data: map[string]interface{}{"name": "messier 81"}}
	result, err = e.BulkStore(ctx, []x.Doc{older})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Empty(t, result.Failed())

	if refresh != nil {
		refresh()
	}
	doc, err := e.Get(ctx, "Galaxy", "m81")
	require.NoError(t, err)
	assert.Equal(t, "messier 81", doc.Data["name"])
	assert.Equal(t, int64(150), doc.NanoTs)
	_, present := doc.Data["pos"]
	assert.False(t, present, "doc should be replaced whole, not patched")

	_, err = e.Get(ctx, "Galaxy", "andromeda")
	assert.Equal(t, search.ErrNotFound, err)

	docs, err := e.NewQuery("Galaxy").MatchExact("name", "2masx").Limit(5).Run(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "2masx", docs[0].Id)
}
