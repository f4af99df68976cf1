package elasticsearch

import (
	"context"
	"reflect"

	"github.com/goccy/go-json"
	"github.com/manishrjain/denorm/search"
	"github.com/manishrjain/denorm/x"
	"github.com/olivere/elastic/v7"
	"github.com/pkg/errors"
)

var log = x.Log("elasticsearch")

// Elastic encapsulates elastic search client, and implements methods declared
// by search.Engine. Every kind gets its own index, named by search.IndexName.
type Elastic struct {
	client *elastic.Client
}

// ElasticQuery implements methods declared by search.Query.
type ElasticQuery struct {
	ss    *elastic.SearchService
	bq    *elastic.BoolQuery
	limit int
}

// Init initializes connection to Elastic Search instance at the url given
// as the only argument. Init does not create any index; that's done per
// kind via Create.
func (es *Elastic) Init(args ...string) error {
	if len(args) != 1 {
		log.WithField("args", args).Error("Invalid arguments")
		return errors.Errorf("elasticsearch: expected url, got %d args", len(args))
	}
	url := args[0]

	log.Debug("Initializing connection to ElasticSearch")
	var opts []elastic.ClientOptionFunc
	opts = append(opts, elastic.SetURL(url))
	opts = append(opts, elastic.SetSniff(false))
	client, err := elastic.NewClient(opts...)
	if err != nil {
		x.LogErr(log, err).Error("While creating connection with ElasticSearch.")
		return errors.Wrap(err, "elasticsearch: connect")
	}
	version, err := client.ElasticsearchVersion(url)
	if err != nil {
		x.LogErr(log, err).Error("Unable to query version")
		return errors.Wrap(err, "elasticsearch: version")
	}
	log.WithField("version", version).Debug("ElasticSearch version")
	es.client = client
	log.Debug("Connected with ElasticSearch")
	return nil
}

// SetClient allows for an externally configured client.
func (es *Elastic) SetClient(client *elastic.Client) {
	es.client = client
}

func (es *Elastic) Exists(ctx context.Context, index string) (bool, error) {
	return es.client.IndexExists(index).Do(ctx)
}

func (es *Elastic) Create(ctx context.Context, index string, m search.Mapping) error {
	body := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"kind":    map[string]interface{}{"type": "keyword"},
				"id":      map[string]interface{}{"type": "keyword"},
				"nano_ts": map[string]interface{}{"type": "long"},
				"data": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}(m),
				},
			},
		},
	}
	result, err := es.client.CreateIndex(index).BodyJson(body).Do(ctx)
	if err != nil {
		return errors.Wrapf(err, "elasticsearch: create index %s", index)
	}
	if !result.Acknowledged {
		// Not acknowledged
		log.WithField("index", index).Warn("Create index not acknowledged")
	}
	return nil
}

// BulkStore indexes all docs in one bulk request. Docs are indexed without
// any version check; each write replaces the stored doc.
func (es *Elastic) BulkStore(ctx context.Context, docs []x.Doc) (*search.BulkResult, error) {
	result := new(search.BulkResult)
	if len(docs) == 0 {
		return result, nil
	}

	bulk := es.client.Bulk()
	for _, doc := range docs {
		if doc.Id == "" || doc.Kind == "" {
			return nil, errors.Errorf("elasticsearch: invalid document %+v", doc)
		}
		req := elastic.NewBulkIndexRequest().Index(search.IndexName(doc.Kind)).
			Id(doc.Id).Doc(doc)
		bulk = bulk.Add(req)
	}
	resp, err := bulk.Do(ctx)
	if err != nil {
		x.LogErr(log, err).WithField("num_docs", len(docs)).Error("While bulk indexing")
		return nil, errors.Wrap(err, "elasticsearch: bulk")
	}

	for idx, ops := range resp.Items {
		if idx >= len(docs) {
			break
		}
		item := search.BulkItem{Kind: docs[idx].Kind, Id: docs[idx].Id}
		for _, ri := range ops {
			item.Err = itemError(ri)
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

func itemError(ri *elastic.BulkResponseItem) error {
	if ri == nil || ri.Error == nil {
		return nil
	}
	return errors.Errorf("elasticsearch: %s: %s", ri.Error.Type, ri.Error.Reason)
}

func (es *Elastic) Get(ctx context.Context, kind, id string) (x.Doc, error) {
	var doc x.Doc
	result, err := es.client.Get().Index(search.IndexName(kind)).Id(id).Do(ctx)
	if elastic.IsNotFound(err) {
		return doc, search.ErrNotFound
	}
	if err != nil {
		return doc, errors.Wrapf(err, "elasticsearch: get %s:%s", kind, id)
	}
	if !result.Found {
		return doc, search.ErrNotFound
	}
	if err := json.Unmarshal(result.Source, &doc); err != nil {
		return doc, errors.Wrap(err, "elasticsearch: decode")
	}
	return doc, nil
}

// MatchExact implemented by ElasticSearch uses the 'term' directive on the
// doc data. For string term-exact matches to work, the field needs to be
// mapped as a keyword.
func (eq *ElasticQuery) MatchExact(field string, value interface{}) search.Query {
	eq.bq = eq.bq.Filter(elastic.NewTermQuery("data."+field, value))
	return eq
}

// Limit limits the number of results to num.
func (eq *ElasticQuery) Limit(num int) search.Query {
	eq.limit = num
	return eq
}

// Run runs the query and returns results and error, if any.
func (eq *ElasticQuery) Run(ctx context.Context) (docs []x.Doc, rerr error) {
	ss := eq.ss.Query(eq.bq)
	if eq.limit > 0 {
		ss = ss.Size(eq.limit)
	}
	result, err := ss.Do(ctx)
	if elastic.IsNotFound(err) {
		return docs, nil
	}
	if err != nil {
		x.LogErr(log, err).Error("While running query")
		return docs, err
	}
	if result.Hits == nil {
		log.Debug("No results found")
		return docs, nil
	}

	var d x.Doc
	for _, item := range result.Each(reflect.TypeOf(d)) {
		docs = append(docs, item.(x.Doc))
	}
	return docs, nil
}

// NewQuery creates a new query object, to return results of type kind.
func (es *Elastic) NewQuery(kind string) search.Query {
	eq := new(ElasticQuery)
	eq.ss = es.client.Search(search.IndexName(kind))
	eq.bq = elastic.NewBoolQuery()
	return eq
}

func init() {
	log.Debug("Initing elasticsearch")
	search.Register("elasticsearch", new(Elastic))
}
