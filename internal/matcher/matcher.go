// Package matcher resolves a free-text job query to a canonical taxonomy
// entry: vector similarity first, with a language-model arbiter for the
// ambiguous middle band.
package matcher

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/comp-pricer/internal/arbiter"
	"github.com/sells-group/comp-pricer/internal/model"
)

// Embedder maps text into the taxonomy index's vector space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index returns the k nearest taxonomy entries to a vector.
type Index interface {
	Nearest(ctx context.Context, vector []float32, k int) ([]model.TaxonomyCandidate, error)
}

// Arbiter chooses among ambiguous candidates.
type Arbiter interface {
	Choose(ctx context.Context, q model.JobQuery, candidates []model.TaxonomyCandidate) (*arbiter.Decision, error)
}

// Thresholds tune the matching bands.
type Thresholds struct {
	TopK int
	// High is the similarity at or above which the best candidate is
	// accepted without consulting the arbiter.
	High float64
	// Floor is the similarity a candidate needs to be offered to the arbiter.
	Floor float64
	// DegradedAccept is the similarity the best candidate needs to be
	// accepted when the arbiter is unavailable.
	DegradedAccept float64
}

// DefaultThresholds returns K=5, high 0.85, floor 0.30, degraded accept 0.70.
func DefaultThresholds() Thresholds {
	return Thresholds{TopK: 5, High: 0.85, Floor: 0.30, DegradedAccept: 0.70}
}

// Matcher implements the matching algorithm. It holds no per-request state.
type Matcher struct {
	embedder Embedder
	index    Index
	arbiter  Arbiter
	t        Thresholds
}

// New creates a Matcher. arb may be nil, in which case ambiguous queries are
// resolved as if the arbiter were down.
func New(embedder Embedder, index Index, arb Arbiter, t Thresholds) *Matcher {
	def := DefaultThresholds()
	if t.TopK <= 0 {
		t.TopK = def.TopK
	}
	if t.High <= 0 {
		t.High = def.High
	}
	if t.Floor <= 0 {
		t.Floor = def.Floor
	}
	if t.DegradedAccept <= 0 {
		t.DegradedAccept = def.DegradedAccept
	}
	return &Matcher{embedder: embedder, index: index, arbiter: arb, t: t}
}

// Match resolves q. It never fails: outages degrade to vector-only matching
// or to "no match", flagged via Degraded.
func (m *Matcher) Match(ctx context.Context, q model.JobQuery) model.CanonicalJobMatch {
	log := zap.L().With(zap.String("title", q.Title))

	vec, err := m.embedder.Embed(ctx, q.Text())
	if err != nil {
		log.Warn("matcher: embedding unavailable", zap.Error(err))
		return model.NoMatch(true, "embedding service unavailable")
	}

	candidates, err := m.index.Nearest(ctx, vec, m.t.TopK)
	if err != nil {
		log.Warn("matcher: taxonomy index unavailable", zap.Error(err))
		return model.NoMatch(true, "taxonomy index unavailable")
	}
	if len(candidates) == 0 {
		return model.NoMatch(false, "taxonomy index returned no candidates")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	best := candidates[0]

	if best.Similarity >= m.t.High {
		return model.CanonicalJobMatch{
			Code:       best.Code,
			Title:      best.Title,
			Method:     model.MatchMethodVector,
			Similarity: best.Similarity,
			Confidence: best.Similarity,
			Rationale:  fmt.Sprintf("vector similarity %.2f at or above %.2f", best.Similarity, m.t.High),
		}
	}

	eligible := aboveFloor(candidates, m.t.Floor)
	if len(eligible) == 0 {
		return model.NoMatch(false, fmt.Sprintf("best similarity %.2f below floor %.2f", best.Similarity, m.t.Floor))
	}

	if m.arbiter == nil {
		return m.vectorOnly(best, "arbiter not configured")
	}

	decision, err := m.arbiter.Choose(ctx, q, eligible)
	if err != nil {
		log.Warn("matcher: arbiter unavailable, falling back to vector-only", zap.Error(err))
		return m.vectorOnly(best, "arbiter unavailable")
	}
	if decision == nil {
		log.Warn("matcher: arbiter returned no decision")
		return model.NoMatch(false, "arbiter returned no decision")
	}
	if decision.Rejected() {
		return model.NoMatch(false, "arbiter rejected all candidates: "+decision.Rationale)
	}

	chosen, ok := find(eligible, decision.Code)
	if !ok {
		log.Warn("matcher: arbiter chose a code outside the candidate list", zap.String("code", decision.Code))
		return model.NoMatch(false, fmt.Sprintf("arbiter selected unknown code %q", decision.Code))
	}

	return model.CanonicalJobMatch{
		Code:       chosen.Code,
		Title:      chosen.Title,
		Method:     model.MatchMethodHybridLLM,
		Similarity: chosen.Similarity,
		Confidence: (chosen.Similarity + decision.Confidence) / 2,
		Rationale:  decision.Rationale,
	}
}

// vectorOnly applies the degraded acceptance rule to the best candidate.
func (m *Matcher) vectorOnly(best model.TaxonomyCandidate, reason string) model.CanonicalJobMatch {
	if best.Similarity < m.t.DegradedAccept {
		return model.NoMatch(true, fmt.Sprintf("%s; best similarity %.2f below %.2f", reason, best.Similarity, m.t.DegradedAccept))
	}
	return model.CanonicalJobMatch{
		Code:       best.Code,
		Title:      best.Title,
		Method:     model.MatchMethodVector,
		Similarity: best.Similarity,
		Confidence: best.Similarity,
		Rationale:  fmt.Sprintf("%s; accepted on vector similarity %.2f", reason, best.Similarity),
		Degraded:   true,
	}
}

func aboveFloor(candidates []model.TaxonomyCandidate, floor float64) []model.TaxonomyCandidate {
	var out []model.TaxonomyCandidate
	for _, c := range candidates {
		if c.Similarity >= floor {
			out = append(out, c)
		}
	}
	return out
}

func find(candidates []model.TaxonomyCandidate, code string) (model.TaxonomyCandidate, bool) {
	for _, c := range candidates {
		if c.Code == code {
			return c, true
		}
	}
	return model.TaxonomyCandidate{}, false
}
