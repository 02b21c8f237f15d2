// Package source holds the salary-data adapters. Each adapter reduces one
// independent source to a standardized percentile ladder, or returns nothing.
package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/comp-pricer/internal/config"
	"github.com/sells-group/comp-pricer/internal/model"
)

// Adapter looks up one source. A nil set with a nil error means the source
// has nothing for this query; errors are reserved for failures.
type Adapter interface {
	Kind() model.SourceKind
	Lookup(ctx context.Context, q model.JobQuery, match *model.CanonicalJobMatch) (*model.SourceObservationSet, error)
}

// ErrInsufficientSample means a ladder would rest on too few observations.
var ErrInsufficientSample = eris.New("sample size below minimum")

// Settings tunes one adapter.
type Settings struct {
	Timeout             time.Duration
	MaxAgeDays          int
	MinSample           int
	SimilarityThreshold float64
	MaxRows             int
}

// SettingsFromConfig converts a source config section, filling defaults.
func SettingsFromConfig(c config.SourceConfig) Settings {
	s := Settings{
		Timeout:             time.Duration(c.TimeoutSecs) * time.Second,
		MaxAgeDays:          c.MaxAgeDays,
		MinSample:           c.MinSample,
		SimilarityThreshold: c.SimilarityThreshold,
		MaxRows:             c.MaxRows,
	}
	if s.Timeout <= 0 {
		s.Timeout = 5 * time.Second
	}
	if s.MaxAgeDays <= 0 {
		s.MaxAgeDays = 365
	}
	if s.MinSample <= 0 {
		s.MinSample = 3
	}
	if s.SimilarityThreshold <= 0 {
		s.SimilarityThreshold = 0.35
	}
	if s.MaxRows <= 0 {
		s.MaxRows = 500
	}
	return s
}

// Finalize checks an adapter's own output before it leaves the adapter:
// a valid ladder and at least minSample underlying records.
func Finalize(set *model.SourceObservationSet, minSample int) error {
	if set == nil {
		return nil
	}
	if err := set.Ladder.Validate(); err != nil {
		return eris.Wrapf(err, "source: %s", set.Source)
	}
	if set.SampleSize < minSample {
		return eris.Wrapf(ErrInsufficientSample, "source: %s has %d, need %d", set.Source, set.SampleSize, minSample)
	}
	if set.Quality < 0 || set.Quality > 1 {
		return eris.Errorf("source: %s quality %v outside [0,1]", set.Source, set.Quality)
	}
	return nil
}
