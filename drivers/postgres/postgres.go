// Package postgres is a store driver for PostgreSQL. Record values live in a
// jsonb column, so FindWhere pushes most of the foreign key lookup to the
// database.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"github.com/manishrjain/denorm/store"
	"github.com/manishrjain/denorm/x"
	"github.com/pkg/errors"
)

var log = x.Log("postgres")

const schema = `create table if not exists %s (
	kind    text   not null,
	id      text   not null,
	data    jsonb  not null,
	nano_ts bigint not null,
	source  text   not null default '',
	primary key (kind, id))`

type Postgres struct {
	db *sql.DB

	sqlPut, sqlGet, sqlDelete, sqlFind, sqlScan string
}

// SetDb uses an already opened database, with records in tablename.
func (s *Postgres) SetDb(db *sql.DB, tablename string) {
	s.db = db
	s.sqlPut = fmt.Sprintf(`insert into %s (kind, id, data, nano_ts, source)
	values ($1, $2, $3, $4, $5) on conflict (kind, id) do update set
	data = excluded.data, nano_ts = excluded.nano_ts, source = excluded.source`, tablename)
	s.sqlGet = fmt.Sprintf(`select data, nano_ts, source from %s
	where kind = $1 and id = $2`, tablename)
	s.sqlDelete = fmt.Sprintf(`delete from %s where kind = $1 and id = $2`, tablename)
	s.sqlFind = fmt.Sprintf(`select id, data, nano_ts, source from %s
	where kind = $1 and (data->>$2 = $3 or jsonb_typeof(data->$2) = 'number')`,
		tablename)
	s.sqlScan = fmt.Sprintf(`select id, data, nano_ts, source from %s
	where kind = $1 and id > $2 order by id limit $3`, tablename)
}

// Init takes 2 arguments: the postgres connection string and table name.
// The table is created if missing.
func (s *Postgres) Init(args ...string) error {
	if len(args) != 2 {
		log.WithField("args", args).Error("Invalid arguments")
		return errors.Errorf("postgres: expected dsn and table, got %d args", len(args))
	}
	db, err := sql.Open("postgres", args[0])
	if err != nil {
		x.LogErr(log, err).Error("While opening connection")
		return errors.Wrap(err, "postgres: open")
	}
	if err := db.Ping(); err != nil {
		x.LogErr(log, err).Error("While pinging database")
		return errors.Wrap(err, "postgres: ping")
	}
	if _, err := db.Exec(fmt.Sprintf(schema, args[1])); err != nil {
		x.LogErr(log, err).Error("While creating table")
		return errors.Wrap(err, "postgres: create table")
	}
	s.SetDb(db, args[1])
	return nil
}

func (s *Postgres) Put(ctx context.Context, rec x.Record) error {
	data, err := json.Marshal(rec.Values)
	if err != nil {
		return errors.Wrap(err, "postgres: encode")
	}
	if _, err := s.db.ExecContext(ctx, s.sqlPut, rec.Kind, rec.Id, data,
		rec.NanoTs, rec.Source); err != nil {

		x.LogErr(log, err).WithField("entity", rec.Entity()).Error("While upserting row")
		return errors.Wrap(err, "postgres: put")
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, kind, id string) (x.Record, error) {
	rec := x.Record{Kind: kind, Id: id}
	var data []byte
	err := s.db.QueryRowContext(ctx, s.sqlGet, kind, id).
		Scan(&data, &rec.NanoTs, &rec.Source)
	if err == sql.ErrNoRows {
		return rec, store.ErrNotFound
	}
	if err != nil {
		return rec, errors.Wrap(err, "postgres: get")
	}
	if err := json.Unmarshal(data, &rec.Values); err != nil {
		return rec, errors.Wrap(err, "postgres: decode")
	}
	return rec, nil
}

func (s *Postgres) Delete(ctx context.Context, kind, id string) error {
	_, err := s.db.ExecContext(ctx, s.sqlDelete, kind, id)
	return errors.Wrap(err, "postgres: delete")
}

func (s *Postgres) query(ctx context.Context, kind, q string, args ...interface{}) (
	result []x.Record, rerr error) {

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		x.LogErr(log, err).WithField("kind", kind).Error("While querying")
		return result, errors.Wrap(err, "postgres: query")
	}
	defer rows.Close()

	for rows.Next() {
		rec := x.Record{Kind: kind}
		var data []byte
		if err := rows.Scan(&rec.Id, &data, &rec.NanoTs, &rec.Source); err != nil {
			x.LogErr(log, err).Error("While scanning")
			return result, errors.Wrap(err, "postgres: scan")
		}
		if err := json.Unmarshal(data, &rec.Values); err != nil {
			return result, errors.Wrap(err, "postgres: decode")
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		x.LogErr(log, err).Error("While finishing up on rows")
		return result, errors.Wrap(err, "postgres: rows")
	}
	return result, nil
}

// FindWhere matches strings in the database. Postgres renders numbers its
// own way (1e+21 comes back as 1000000000000000000000, 1.50 keeps its
// zero), so numeric values are fetched and compared here, the same way
// store.Matches does for every driver.
func (s *Postgres) FindWhere(ctx context.Context, kind, field, value string) ([]x.Record, error) {
	recs, err := s.query(ctx, kind, s.sqlFind, kind, field, value)
	if err != nil {
		return nil, err
	}
	matched := recs[:0]
	for _, rec := range recs {
		if store.Matches(rec, field, value) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

func (s *Postgres) Iterate(ctx context.Context, kind, afterId string, num int) ([]x.Record, error) {
	return s.query(ctx, kind, s.sqlScan, kind, afterId, num)
}

func (s *Postgres) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func init() {
	log.Debug("Initing postgres")
	store.Register("postgres", new(Postgres))
}
