// Package cassandra contains Cassandra driver for denorm.
// To test this cassandra integration, run cassandra on docker
// $ docker run --detach --name cassone -p 9042:9042 cassandra:4
// and create a keyspace:
// $ docker exec -it cassone cqlsh -e "create keyspace denormtest with
//   replication = {'class': 'SimpleStrategy', 'replication_factor': 1}"
// The records table is created by Init if missing.
//
// Cassandra driver can now be imported, and initialized:
// import _ "github.com/manishrjain/denorm/drivers/cassandra"
// st, _ := store.Get("cassandra")
// st.Init("127.0.0.1", "denormtest", "records")
package cassandra

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"
	"github.com/goccy/go-json"
	"github.com/manishrjain/denorm/store"
	"github.com/manishrjain/denorm/x"
	"github.com/pkg/errors"
)

var log = x.Log("cassandra")

const kSchema = `create table if not exists %s (
	kind text, id text, data text, nano_ts bigint, source text,
	primary key (kind, id))`

// Records of a kind share one partition, clustered by id.
type Cassandra struct {
	session *gocql.Session

	kInsert, kSelect, kDelete, kPartition, kScan string
}

func (cs *Cassandra) SetSession(session *gocql.Session, tablename string) {
	cs.session = session
	cs.kInsert = fmt.Sprintf(`insert into %s (kind, id, data, nano_ts, source)
values (?, ?, ?, ?, ?)`, tablename)
	cs.kSelect = fmt.Sprintf(`select data, nano_ts, source from %s
where kind = ? and id = ?`, tablename)
	cs.kDelete = fmt.Sprintf(`delete from %s where kind = ? and id = ?`, tablename)
	cs.kPartition = fmt.Sprintf(`select id, data, nano_ts, source from %s
where kind = ?`, tablename)
	cs.kScan = fmt.Sprintf(`select id, data, nano_ts, source from %s
where kind = ? and id > ? limit ?`, tablename)
}

// Init takes 3 arguments: host, keyspace and table; and optionally
// username and password.
func (cs *Cassandra) Init(args ...string) error {
	if len(args) != 3 && len(args) != 5 {
		log.WithField("args", args).Error("Invalid arguments")
		return errors.Errorf("cassandra: expected 3 or 5 args, got %d", len(args))
	}

	ipaddr := args[0]
	keyspace := args[1]
	tablename := args[2]

	cluster := gocql.NewCluster(ipaddr)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	if len(args) == 5 {
		log.WithField("username", args[3]).
			Debug("Passing username and password to Cassandra")
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: args[3],
			Password: args[4],
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		x.LogErr(log, err).Error("While creating session")
		return errors.Wrap(err, "cassandra: session")
	}
	if err := session.Query(fmt.Sprintf(kSchema, tablename)).Exec(); err != nil {
		x.LogErr(log, err).Error("While creating table")
		return errors.Wrap(err, "cassandra: create table")
	}
	cs.SetSession(session, tablename)
	return nil
}

func (cs *Cassandra) Put(ctx context.Context, rec x.Record) error {
	data, err := json.Marshal(rec.Values)
	if err != nil {
		return errors.Wrap(err, "cassandra: encode")
	}
	err = cs.session.Query(cs.kInsert, rec.Kind, rec.Id, string(data), rec.NanoTs,
		rec.Source).WithContext(ctx).Exec()
	if err != nil {
		x.LogErr(log, err).WithField("entity", rec.Entity()).Error("While inserting")
		return errors.Wrap(err, "cassandra: put")
	}
	return nil
}

func (cs *Cassandra) Get(ctx context.Context, kind, id string) (x.Record, error) {
	rec := x.Record{Kind: kind, Id: id}
	var data string
	err := cs.session.Query(cs.kSelect, kind, id).WithContext(ctx).
		Scan(&data, &rec.NanoTs, &rec.Source)
	if err == gocql.ErrNotFound {
		return rec, store.ErrNotFound
	}
	if err != nil {
		return rec, errors.Wrap(err, "cassandra: get")
	}
	if err := json.Unmarshal([]byte(data), &rec.Values); err != nil {
		return rec, errors.Wrap(err, "cassandra: decode")
	}
	return rec, nil
}

func (cs *Cassandra) Delete(ctx context.Context, kind, id string) error {
	err := cs.session.Query(cs.kDelete, kind, id).WithContext(ctx).Exec()
	return errors.Wrap(err, "cassandra: delete")
}

func (cs *Cassandra) scan(iter *gocql.Iter, kind string,
	match func(x.Record) bool) (result []x.Record, rerr error) {

	rec := x.Record{Kind: kind}
	var data string
	for iter.Scan(&rec.Id, &data, &rec.NanoTs, &rec.Source) {
		rec.Values = nil
		if err := json.Unmarshal([]byte(data), &rec.Values); err != nil {
			iter.Close()
			return result, errors.Wrap(err, "cassandra: decode")
		}
		if match(rec) {
			result = append(result, rec)
		}
	}
	if err := iter.Close(); err != nil {
		x.LogErr(log, err).Error("While closing iterator")
		return result, errors.Wrap(err, "cassandra: iterate")
	}
	return result, nil
}

// FindWhere reads the whole partition of the kind and filters client side,
// since record values are stored as an opaque JSON blob.
func (cs *Cassandra) FindWhere(ctx context.Context, kind, field, value string) ([]x.Record, error) {
	iter := cs.session.Query(cs.kPartition, kind).WithContext(ctx).Iter()
	return cs.scan(iter, kind, func(rec x.Record) bool {
		return store.Matches(rec, field, value)
	})
}

func (cs *Cassandra) Iterate(ctx context.Context, kind, afterId string, num int) ([]x.Record, error) {
	iter := cs.session.Query(cs.kScan, kind, afterId, num).WithContext(ctx).Iter()
	return cs.scan(iter, kind, func(x.Record) bool { return true })
}

func (cs *Cassandra) Close() error {
	if cs.session != nil {
		cs.session.Close()
	}
	return nil
}

func init() {
	log.Debug("Initing cassandra")
	store.Register("cassandra", new(Cassandra))
}
