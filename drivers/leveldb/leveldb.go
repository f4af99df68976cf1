// Package leveldb is an embedded store driver, backed by goleveldb.
// Records are JSON encoded, keyed by kind and id.
package leveldb

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/manishrjain/denorm/store"
	"github.com/manishrjain/denorm/x"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var log = x.Log("leveldb")

type Leveldb struct {
	db  *leveldb.DB
	opt *opt.Options
}

func (l *Leveldb) SetBloomFilter(bits int) {
	l.opt = &opt.Options{
		Filter: filter.NewBloomFilter(bits),
	}
}

// Init opens the database at the file path given as the only argument.
func (l *Leveldb) Init(args ...string) error {
	if len(args) != 1 {
		log.WithField("args", args).Error("Invalid arguments")
		return errors.Errorf("leveldb: expected file path, got %d args", len(args))
	}
	var err error
	l.db, err = leveldb.OpenFile(args[0], l.opt)
	if err != nil {
		x.LogErr(log, err).Error("While opening leveldb")
		return errors.Wrap(err, "leveldb: open")
	}
	log.WithField("path", args[0]).Debug("Opened leveldb")
	return nil
}

func prefix(kind string) []byte {
	return []byte(kind + "\x00")
}

func key(kind, id string) []byte {
	return append(prefix(kind), id...)
}

func (l *Leveldb) Put(ctx context.Context, rec x.Record) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "leveldb: encode")
	}
	if err := l.db.Put(key(rec.Kind, rec.Id), buf, nil); err != nil {
		x.LogErr(log, err).WithField("entity", rec.Entity()).Error("While writing to db")
		return errors.Wrap(err, "leveldb: put")
	}
	return nil
}

func (l *Leveldb) Get(ctx context.Context, kind, id string) (x.Record, error) {
	var rec x.Record
	buf, err := l.db.Get(key(kind, id), nil)
	if err == leveldb.ErrNotFound {
		return rec, store.ErrNotFound
	}
	if err != nil {
		return rec, errors.Wrap(err, "leveldb: get")
	}
	if err := json.Unmarshal(buf, &rec); err != nil {
		return rec, errors.Wrap(err, "leveldb: decode")
	}
	return rec, nil
}

func (l *Leveldb) Delete(ctx context.Context, kind, id string) error {
	return errors.Wrap(l.db.Delete(key(kind, id), nil), "leveldb: delete")
}

// scan decodes the records in the range, stopping after num matches
// when num is positive.
func (l *Leveldb) scan(ctx context.Context, slice *util.Range, num int,
	match func(x.Record) bool) (result []x.Record, rerr error) {

	iter := l.db.NewIterator(slice, nil)
	defer iter.Release()
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		var rec x.Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			x.LogErr(log, err).WithField("key", string(iter.Key())).Error("While decoding")
			return result, errors.Wrap(err, "leveldb: decode")
		}
		if !match(rec) {
			continue
		}
		result = append(result, rec)
		if num > 0 && len(result) >= num {
			break
		}
	}
	if err := iter.Error(); err != nil {
		x.LogErr(log, err).Error("While iterating")
		return result, errors.Wrap(err, "leveldb: iterate")
	}
	return result, nil
}

// FindWhere scans all records of the kind. There's no secondary index.
func (l *Leveldb) FindWhere(ctx context.Context, kind, field, value string) ([]x.Record, error) {
	return l.scan(ctx, util.BytesPrefix(prefix(kind)), 0, func(rec x.Record) bool {
		return store.Matches(rec, field, value)
	})
}

func (l *Leveldb) Iterate(ctx context.Context, kind, afterId string, num int) ([]x.Record, error) {
	slice := util.BytesPrefix(prefix(kind))
	if len(afterId) > 0 {
		slice.Start = append(key(kind, afterId), 0)
	}
	return l.scan(ctx, slice, num, func(x.Record) bool { return true })
}

func (l *Leveldb) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

func init() {
	log.Debug("Initing leveldb")
	l := new(Leveldb)
	l.SetBloomFilter(13)
	store.Register("leveldb", l)
}
