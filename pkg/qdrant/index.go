// Package qdrant looks up job-taxonomy entries by vector similarity.
package qdrant

import (
	"context"
	"net/url"
	"strconv"

	qd "github.com/qdrant/go-client/qdrant"
	"github.com/rotisserie/eris"

	"github.com/sells-group/comp-pricer/internal/model"
	"github.com/sells-group/comp-pricer/internal/resilience"
)

// Payload keys written by the taxonomy loader.
const (
	PayloadCode        = "code"
	PayloadTitle       = "title"
	PayloadDescription = "description"
)

// queryAPI is the part of *qdrant.Client the Index calls.
type queryAPI interface {
	Query(ctx context.Context, request *qd.QueryPoints) ([]*qd.ScoredPoint, error)
}

// Index is a taxonomy collection stored with cosine distance.
type Index struct {
	client     queryAPI
	collection string
	guard      *resilience.Guard
}

// NewClient connects to qdrant over gRPC. rawURL may use http or https; the
// port defaults to 6334.
func NewClient(rawURL, apiKey string) (*qd.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "qdrant: parse url %q", rawURL)
	}
	if parsed.Hostname() == "" {
		return nil, eris.Errorf("qdrant: url %q has no host", rawURL)
	}

	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qd.NewClient(&qd.Config{
		Host:   parsed.Hostname(),
		Port:   port,
		APIKey: apiKey,
		UseTLS: parsed.Scheme == "https",
	})
	if err != nil {
		return nil, eris.Wrap(err, "qdrant: create client")
	}
	return client, nil
}

// NewIndex wraps a qdrant client for one taxonomy collection.
func NewIndex(client *qd.Client, collection string, guard *resilience.Guard) *Index {
	return &Index{client: client, collection: collection, guard: guard}
}

// Nearest returns up to k taxonomy entries ordered by descending similarity.
// Points without a code payload are skipped.
func (ix *Index) Nearest(ctx context.Context, vector []float32, k int) ([]model.TaxonomyCandidate, error) {
	if k <= 0 {
		return nil, nil
	}

	points, err := resilience.Call(ctx, ix.guard, "query", func(ctx context.Context) ([]*qd.ScoredPoint, error) {
		pts, err := ix.client.Query(ctx, &qd.QueryPoints{
			CollectionName: ix.collection,
			Query:          qd.NewQuery(vector...),
			Limit:          qd.PtrOf(uint64(k)),
			WithPayload:    qd.NewWithPayload(true),
		})
		if err != nil {
			return nil, eris.Wrapf(err, "qdrant: query %s", ix.collection)
		}
		return pts, nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.TaxonomyCandidate, 0, len(points))
	for _, p := range points {
		c := model.TaxonomyCandidate{
			Code:        stringPayload(p.GetPayload(), PayloadCode),
			Title:       stringPayload(p.GetPayload(), PayloadTitle),
			Description: stringPayload(p.GetPayload(), PayloadDescription),
			Similarity:  float64(p.GetScore()),
		}
		if c.Code == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func stringPayload(payload map[string]*qd.Value, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.GetKind().(*qd.Value_StringValue); ok {
		return s.StringValue
	}
	return ""
}
