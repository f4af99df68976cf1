package testx

import (
	"context"
	"fmt"
	"testing"

	"github.com/manishrjain/denorm/store"
	"github.com/manishrjain/denorm/x"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStore checks the store.Store contract against an empty store.
func RunStore(t *testing.T, st store.Store) {
	ctx := context.Background()

	_, err := st.Get(ctx, ArticleKind, "1")
	require.Equal(t, store.ErrNotFound, err)

	for i := 1; i <= 5; i++ {
		rec := x.Record{
			Kind:   ArticleKind,
			Id:     fmt.Sprintf("a%d", i),
			NanoTs: int64(i),
			Source: "test",
			Values: map[string]interface{}{
				"title":               fmt.Sprintf("Article %d", i),
				"associated_model_id": fmt.Sprintf("%d", i%2),
			},
		}
		require.NoError(t, st.Put(ctx, rec))
	}
	require.NoError(t, st.Put(ctx, x.Record{Kind: AuthorKind, Id: "1", NanoTs: 1,
		Values: map[string]interface{}{"first_name": "Jack"}}))

	rec, err := st.Get(ctx, ArticleKind, "a3")
	require.NoError(t, err)
	assert.Equal(t, "Article 3", rec.Values["title"])
	assert.Equal(t, int64(3), rec.NanoTs)

	found, err := st.FindWhere(ctx, ArticleKind, "associated_model_id", "1")
	require.NoError(t, err)
	var ids []string
	for _, r := range found {
		ids = append(ids, r.Id)
	}
	assert.ElementsMatch(t, []string{"a1", "a3", "a5"}, ids)

	found, err = st.FindWhere(ctx, ArticleKind, "associated_model_id", "7")
	require.NoError(t, err)
	assert.Empty(t, found)

	page, err := st.Iterate(ctx, ArticleKind, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a1", page[0].Id)
	assert.Equal(t, "a2", page[1].Id)

	page, err = st.Iterate(ctx, ArticleKind, "a2", 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "a3", page[0].Id)
	assert.Equal(t, "a5", page[2].Id)

	// Replacing drops fields not present any more.
	require.NoError(t, st.Put(ctx, x.Record{Kind: ArticleKind, Id: "a3", NanoTs: 10,
		Values: map[string]interface{}{"title": "Rewritten"}}))
	rec, err = st.Get(ctx, ArticleKind, "a3")
	require.NoError(t, err)
	assert.Equal(t, "Rewritten", rec.Values["title"])
	_, present := rec.Values["associated_model_id"]
	assert.False(t, present)

	require.NoError(t, st.Delete(ctx, ArticleKind, "a3"))
	_, err = st.Get(ctx, ArticleKind, "a3")
	assert.Equal(t, store.ErrNotFound, err)
	require.NoError(t, st.Delete(ctx, ArticleKind, "a3"))
}
