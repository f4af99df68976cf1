package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/manishrjain/denorm/store"
	"github.com/manishrjain/denorm/x"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initialize(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	s := new(Postgres)
	s.SetDb(db, "records")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return s, mock
}

var cols = []string{"id", "data", "nano_ts", "source"}

func TestPut(t *testing.T) {
	s, mock := initialize(t)
	mock.ExpectExec("insert into records").
		WithArgs("Author", "1", []byte(`{"first_name":"Jack"}`), int64(5), "test").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Put(context.Background(), x.Record{Kind: "Author", Id: "1", NanoTs: 5,
		Source: "test", Values: map[string]interface{}{"first_name": "Jack"}})
	require.NoError(t, err)
}

func TestPutError(t *testing.T) {
	s, mock := initialize(t)
	mock.ExpectExec("insert into records").WillReturnError(errors.New("connection reset"))

	err := s.Put(context.Background(), x.Record{Kind: "Author", Id: "1"})
	assert.Error(t, err)
}

func TestGet(t *testing.T) {
	s, mock := initialize(t)
	mock.ExpectQuery("select data, nano_ts, source from records").
		WithArgs("Author", "1").
		WillReturnRows(sqlmock.NewRows([]string{"data", "nano_ts", "source"}).
			AddRow([]byte(`{"first_name":"Jim"}`), int64(7), "test"))
	mock.ExpectQuery("select data, nano_ts, source from records").
		WithArgs("Author", "2").
		WillReturnError(sql.ErrNoRows)

	rec, err := s.Get(context.Background(), "Author", "1")
	require.NoError(t, err)
	assert.Equal(t, "Jim", rec.Values["first_name"])
	assert.Equal(t, int64(7), rec.NanoTs)

	_, err = s.Get(context.Background(), "Author", "2")
	assert.Equal(t, store.ErrNotFound, err)
}

func TestFindWhere(t *testing.T) {
	s, mock := initialize(t)
	mock.ExpectQuery(`select id, data, nano_ts, source from records\s+` +
		`where kind = \$1 and \(data->>\$2 = \$3 or jsonb_typeof\(data->\$2\) = 'number'\)`).
		WithArgs("Article", "author_id", "1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a1", []byte(`{"author_id":"1","title":"One"}`), int64(1), "").
			AddRow("a2", []byte(`{"author_id":1,"title":"Two"}`), int64(2), ""))

	recs, err := s.FindWhere(context.Background(), "Article", "author_id", "1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Article", recs[0].Kind)
	assert.Equal(t, "a1", recs[0].Id)
	assert.Equal(t, "Two", recs[1].Values["title"])
}

func TestFindWhereNumbers(t *testing.T) {
	s, mock := initialize(t)
	mock.ExpectQuery(`jsonb_typeof`).
		WithArgs("Article", "author_id", "1000000000000000000000").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("big", []byte(`{"author_id":1e+21}`), int64(1), "").
			AddRow("small", []byte(`{"author_id":2}`), int64(2), "").
			AddRow("half", []byte(`{"author_id":1.5}`), int64(3), ""))

	recs, err := s.FindWhere(context.Background(), "Article", "author_id", "1000000000000000000000")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "big", recs[0].Id)
}

func TestIterate(t *testing.T) {
	s, mock := initialize(t)
	mock.ExpectQuery("order by id limit").
		WithArgs("Article", "a1", int64(2)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a2", []byte(`{}`), int64(1), "").
			AddRow("a3", []byte(`{}`), int64(1), ""))

	recs, err := s.Iterate(context.Background(), "Article", "a1", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a3", recs[1].Id)
}

func TestQueryError(t *testing.T) {
	s, mock := initialize(t)
	mock.ExpectQuery("select id").WillReturnError(errors.New("timeout"))

	_, err := s.FindWhere(context.Background(), "Article", "author_id", "1")
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	s, mock := initialize(t)
	mock.ExpectExec("delete from records").WithArgs("Author", "1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Delete(context.Background(), "Author", "1"))
}
