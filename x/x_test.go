package x_test

import (
	"fmt"
	"testing"

	"github.com/manishrjain/denorm/x"
	"github.com/stretchr/testify/assert"
)

func ExampleUniqueString() {
	u := x.UniqueString(3)
	fmt.Println(len(u))
	// Output: 3
}

func ExampleUnderscore() {
	fmt.Println(x.Underscore("AssociatedModel"))
	fmt.Println(x.Underscore("ArticleWithAssociation"))
	fmt.Println(x.Underscore("HTTPServer"))
	// Output:
	// associated_model
	// article_with_association
	// http_server
}

func TestUnderscore(t *testing.T) {
	for in, want := range map[string]string{
		"User":            "user",
		"author":          "author",
		"AssociatedModel": "associated_model",
		"HTTPServer":      "http_server",
	} {
		assert.Equal(t, want, x.Underscore(in), in)
	}
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "1", x.Stringify(float64(1)))
	assert.Equal(t, "1.5", x.Stringify(1.5))
	assert.Equal(t, "42", x.Stringify(42))
	assert.Equal(t, "42", x.Stringify(int64(42)))
	assert.Equal(t, "abc", x.Stringify("abc"))
	assert.Equal(t, "true", x.Stringify(true))
}

func TestRecordString(t *testing.T) {
	rec := x.Record{Kind: "Article", Id: "1", Values: map[string]interface{}{
		"author_id": float64(7),
		"empty":     nil,
	}}
	v, ok := rec.String("author_id")
	assert.True(t, ok)
	assert.Equal(t, "7", v)

	_, ok = rec.String("empty")
	assert.False(t, ok)
	_, ok = rec.String("missing")
	assert.False(t, ok)

	assert.Equal(t, x.Entity{Kind: "Article", Id: "1"}, rec.Entity())
	assert.Equal(t, "Article:1", rec.Entity().String())
}

func TestSetLevel(t *testing.T) {
	assert.NoError(t, x.SetLevel(""))
	assert.NoError(t, x.SetLevel("info"))
	assert.Error(t, x.SetLevel("chatty"))
}
