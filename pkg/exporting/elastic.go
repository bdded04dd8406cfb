package exporting

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	log "github.com/sirupsen/logrus"

	"colmet/pkg/counters"
)

const elasticTimeout = 30 * time.Second

// ElasticSink indexes records through the Elasticsearch bulk API. The
// index name is the prefix followed by the schema name.
type ElasticSink struct {
	prefix string
	client *elasticsearch.Client
}

func NewElasticSink(url, prefix string) (*ElasticSink, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{strings.TrimSuffix(url, "/")},
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &ElasticSink{prefix: prefix, client: client}, nil
}

func (s *ElasticSink) Name() string { return "elasticsearch" }

// Index returns the index a schema's records go to.
func (s *ElasticSink) Index(schema string) string { return s.prefix + schema }

// Push indexes recs in one bulk request and fails when any document was
// rejected.
func (s *ElasticSink) Push(ctx context.Context, recs []*counters.Unpacked) error {
	if len(recs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, elasticTimeout)
	defer cancel()

	var (
		mu    sync.Mutex
		first string
	)
	fail := func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		if first == "" {
			first = msg
		}
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     s.client,
		NumWorkers: 1,
		OnError:    func(_ context.Context, err error) { fail(err.Error()) },
	})
	if err != nil {
		return err
	}

	for _, r := range recs {
		var doc bytes.Buffer
		if err := encodeObject(&doc, r.Schema(), r); err != nil {
			bi.Close(ctx)
			return err
		}
		err := bi.Add(ctx, esutil.BulkIndexerItem{
			Action: "index",
			Index:  s.Index(r.Backend()),
			Body:   bytes.NewReader(doc.Bytes()),
			OnFailure: func(_ context.Context, _ esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					fail(err.Error())
					return
				}
				fail(res.Error.Type + ": " + res.Error.Reason)
			},
		})
		if err != nil {
			bi.Close(ctx)
			return fmt.Errorf("bulk add: %w", err)
		}
	}
	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}

	st := bi.Stats()
	if st.NumFailed == 0 && first == "" {
		return nil
	}
	log.Debugf("Bulk indexing: %d of %d documents rejected", st.NumFailed, len(recs))
	return fmt.Errorf("%d of %d documents rejected, first: %s", st.NumFailed, len(recs), first)
}

func (s *ElasticSink) Close() error { return nil }
