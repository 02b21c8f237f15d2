package source

import (
	"time"

	"github.com/sells-group/comp-pricer/internal/config"
	"github.com/sells-group/comp-pricer/internal/db"
	"github.com/sells-group/comp-pricer/internal/model"
)

// Registered is an adapter with its lookup timeout and the max age used to
// decay its observations.
type Registered struct {
	Adapter    Adapter
	Timeout    time.Duration
	MaxAgeDays int
}

// Registry is the immutable set of configured adapters. A source that is
// disabled is simply absent, which the aggregator treats exactly like a
// source that returned nothing.
type Registry struct {
	entries []Registered
}

// NewRegistry builds a registry from explicit entries. Later entries of a
// kind already present are ignored.
func NewRegistry(entries ...Registered) *Registry {
	seen := make(map[model.SourceKind]bool, len(entries))
	r := &Registry{}
	for _, e := range entries {
		if e.Adapter == nil || seen[e.Adapter.Kind()] {
			continue
		}
		seen[e.Adapter.Kind()] = true
		r.entries = append(r.entries, e)
	}
	return r
}

// FromConfig wires every enabled source against pool.
func FromConfig(pool db.Pool, cfg config.SourcesConfig, norm Normalizer, opts ...Option) *Registry {
	var entries []Registered

	if cfg.TaxonomyBenchmark.Enabled {
		s := SettingsFromConfig(cfg.TaxonomyBenchmark)
		region := cfg.DefaultRegion
		if region == "" {
			region = "national"
		}
		entries = append(entries, Registered{
			Adapter:    NewBenchmarkAdapter(pool, s, norm, region),
			Timeout:    s.Timeout,
			MaxAgeDays: s.MaxAgeDays,
		})
	}

	observed := []struct {
		cfg   config.SourceConfig
		table TableSpec
	}{
		{cfg.ScrapedListings, ScrapedListingsTable},
		{cfg.InternalRecords, InternalRecordsTable},
		{cfg.CandidateExpectations, CandidateExpectationsTable},
	}
	for _, o := range observed {
		if !o.cfg.Enabled {
			continue
		}
		s := SettingsFromConfig(o.cfg)
		entries = append(entries, Registered{
			Adapter:    NewObservationAdapter(pool, o.table, s, norm, opts...),
			Timeout:    s.Timeout,
			MaxAgeDays: s.MaxAgeDays,
		})
	}

	return NewRegistry(entries...)
}

// Entries returns the registered adapters in registration order.
func (r *Registry) Entries() []Registered {
	out := make([]Registered, len(r.entries))
	copy(out, r.entries)
	return out
}

// MaxAges returns the max-age table for decay, keyed by source kind.
func (r *Registry) MaxAges() map[model.SourceKind]int {
	out := make(map[model.SourceKind]int, len(r.entries))
	for _, e := range r.entries {
		out[e.Adapter.Kind()] = e.MaxAgeDays
	}
	return out
}
