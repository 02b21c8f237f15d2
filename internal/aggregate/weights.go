package aggregate

import (
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/comp-pricer/internal/config"
	"github.com/sells-group/comp-pricer/internal/model"
)

// weightTolerance bounds the float error allowed when checking a weight table
// sums to 1.0.
const weightTolerance = 1e-6

// reservedKey names the weight held back for a source that is not yet wired.
const reservedKey = "reserved"

// Weights is an immutable table of nominal source weights. Nominal weights
// plus the reserved slot sum to 1.0.
type Weights struct {
	nominal  map[model.SourceKind]float64
	reserved float64
}

// NewWeights validates and copies a weight table.
func NewWeights(nominal map[model.SourceKind]float64, reserved float64) (Weights, error) {
	if bad(reserved) {
		return Weights{}, eris.Errorf("aggregate: reserved weight %v must be a finite non-negative number", reserved)
	}
	sum := reserved
	copied := make(map[model.SourceKind]float64, len(nominal))
	for k, w := range nominal {
		if !k.Valid() {
			return Weights{}, eris.Errorf("aggregate: unknown source kind %q in weight table", k)
		}
		if bad(w) {
			return Weights{}, eris.Errorf("aggregate: weight for %s is %v, must be a finite non-negative number", k, w)
		}
		copied[k] = w
		sum += w
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return Weights{}, eris.Errorf("aggregate: weights sum to %.6f, want 1.0", sum)
	}
	return Weights{nominal: copied, reserved: reserved}, nil
}

func bad(w float64) bool {
	return w < 0 || math.IsNaN(w) || math.IsInf(w, 0)
}

// DefaultWeights returns the built-in weight table.
func DefaultWeights() Weights {
	w, _ := NewWeights(map[model.SourceKind]float64{
		model.SourceTaxonomyBenchmark:     0.40,
		model.SourceScrapedListings:       0.25,
		model.SourceInternalRecords:       0.15,
		model.SourceCandidateExpectations: 0.05,
	}, 0.15)
	return w
}

// WeightsFromConfig builds the weight table from config. A configured weights
// file replaces the inline values.
func WeightsFromConfig(cfg config.WeightsConfig) (Weights, error) {
	if cfg.File != "" {
		return LoadWeights(cfg.File)
	}
	return NewWeights(map[model.SourceKind]float64{
		model.SourceTaxonomyBenchmark:     cfg.TaxonomyBenchmark,
		model.SourceScrapedListings:       cfg.ScrapedListings,
		model.SourceInternalRecords:       cfg.InternalRecords,
		model.SourceCandidateExpectations: cfg.CandidateExpectations,
	}, cfg.Reserved)
}

// weightsFile is the top-level wrapper for the YAML weight table.
type weightsFile struct {
	Weights map[string]float64 `yaml:"weights"`
}

// LoadWeights reads a YAML weight table of the form
//
//	weights:
//	  taxonomy_benchmark: 0.40
//	  scraped_listings: 0.25
//	  reserved: 0.35
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, eris.Wrapf(err, "aggregate: read weights %s", path)
	}

	var wf weightsFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return Weights{}, eris.Wrapf(err, "aggregate: parse weights %s", path)
	}
	if len(wf.Weights) == 0 {
		return Weights{}, eris.Errorf("aggregate: weights %s has no weights table", path)
	}

	var reserved float64
	nominal := make(map[model.SourceKind]float64, len(wf.Weights))
	for name, w := range wf.Weights {
		name = strings.TrimSpace(name)
		if name == reservedKey {
			reserved = w
			continue
		}
		k, err := model.ParseSourceKind(name)
		if err != nil {
			return Weights{}, eris.Wrapf(err, "aggregate: weights %s", path)
		}
		nominal[k] = w
	}
	return NewWeights(nominal, reserved)
}

// Nominal returns the configured weight for k, or 0 if k has none.
func (w Weights) Nominal(k model.SourceKind) float64 {
	return w.nominal[k]
}

// Reserved returns the weight held for unconfigured sources.
func (w Weights) Reserved() float64 {
	return w.reserved
}

// Total returns the full configured weight, including the reserved slot.
func (w Weights) Total() float64 {
	t := w.reserved
	for _, v := range w.nominal {
		t += v
	}
	return t
}

// Share returns the fraction of the full configured weight held by kinds.
// Duplicates count once.
func (w Weights) Share(kinds []model.SourceKind) float64 {
	total := w.Total()
	if total <= 0 {
		return 0
	}
	seen := make(map[model.SourceKind]bool, len(kinds))
	var s float64
	for _, k := range kinds {
		if seen[k] {
			continue
		}
		seen[k] = true
		s += w.nominal[k]
	}
	return s / total
}

// String renders the table in a stable order for logs.
func (w Weights) String() string {
	kinds := make([]string, 0, len(w.nominal))
	for k := range w.nominal {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	var b strings.Builder
	for _, k := range kinds {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatWeight(w.nominal[model.SourceKind(k)]))
		b.WriteByte(' ')
	}
	b.WriteString(reservedKey + "=" + formatWeight(w.reserved))
	return b.String()
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}
