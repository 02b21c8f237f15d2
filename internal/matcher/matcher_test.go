package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/comp-pricer/internal/arbiter"
	"github.com/sells-group/comp-pricer/internal/model"
)

type mockEmbedder struct{ mock.Mock }

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type mockIndex struct{ mock.Mock }

func (m *mockIndex) Nearest(ctx context.Context, vector []float32, k int) ([]model.TaxonomyCandidate, error) {
	args := m.Called(ctx, vector, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TaxonomyCandidate), args.Error(1)
}

type mockArbiter struct{ mock.Mock }

func (m *mockArbiter) Choose(ctx context.Context, q model.JobQuery, c []model.TaxonomyCandidate) (*arbiter.Decision, error) {
	args := m.Called(ctx, q, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*arbiter.Decision), args.Error(1)
}

var vec = []float32{0.1, 0.2, 0.3}

func setup(cands []model.TaxonomyCandidate) (*mockEmbedder, *mockIndex, *mockArbiter) {
	e := &mockEmbedder{}
	e.On("Embed", mock.Anything, mock.Anything).Return(vec, nil)
	ix := &mockIndex{}
	ix.On("Nearest", mock.Anything, vec, 5).Return(cands, nil)
	return e, ix, &mockArbiter{}
}

func TestMatch_HighSimilarityAcceptsVector(t *testing.T) {
	e, ix, arb := setup([]model.TaxonomyCandidate{
		{Code: "HR-110", Title: "Benefits Administrator", Similarity: 0.60},
		{Code: "HR-104", Title: "Payroll Specialist", Similarity: 0.91},
	})

	m := New(e, ix, arb, DefaultThresholds())
	got := m.Match(context.Background(), model.JobQuery{Title: "Payroll Specialist"})

	assert.True(t, got.Matched())
	assert.Equal(t, "HR-104", got.Code)
	assert.Equal(t, model.MatchMethodVector, got.Method)
	assert.InDelta(t, 0.91, got.Confidence, 1e-9)
	assert.False(t, got.Degraded)
	arb.AssertNotCalled(t, "Choose", mock.Anything, mock.Anything, mock.Anything)
}

func TestMatch_AmbiguousUsesArbiter(t *testing.T) {
	cands := []model.TaxonomyCandidate{
		{Code: "HR-104", Title: "Payroll Specialist", Similarity: 0.72},
		{Code: "HR-110", Title: "Benefits Administrator", Similarity: 0.50},
		{Code: "HR-900", Title: "Facilities", Similarity: 0.10},
	}
	e, ix, arb := setup(cands)
	arb.On("Choose", mock.Anything, mock.Anything, cands[:2]).
		Return(&arbiter.Decision{Code: "HR-110", Rationale: "benefits focus", Confidence: 0.8}, nil)

	m := New(e, ix, arb, DefaultThresholds())
	got := m.Match(context.Background(), model.JobQuery{Title: "Benefits Coordinator"})

	assert.Equal(t, "HR-110", got.Code)
	assert.Equal(t, model.MatchMethodHybridLLM, got.Method)
	assert.InDelta(t, 0.65, got.Confidence, 1e-9)
	assert.Equal(t, "benefits focus", got.Rationale)
	arb.AssertExpectations(t)
}

func TestMatch_BelowFloorIsNoMatch(t *testing.T) {
	// A technical query against an HR-only taxonomy.
	e, ix, arb := setup([]model.TaxonomyCandidate{
		{Code: "HR-104", Title: "Payroll Specialist", Similarity: 0.21},
		{Code: "HR-200", Title: "Recruiter", Similarity: 0.18},
	})

	m := New(e, ix, arb, DefaultThresholds())
	got := m.Match(context.Background(), model.JobQuery{Title: "Software Engineer"})

	assert.False(t, got.Matched())
	assert.Equal(t, model.MatchMethodNone, got.Method)
	assert.False(t, got.Degraded)
	assert.Contains(t, got.Rationale, "below floor")
	arb.AssertNotCalled(t, "Choose", mock.Anything, mock.Anything, mock.Anything)
}

func TestMatch_ArbiterRejects(t *testing.T) {
	e, ix, arb := setup([]model.TaxonomyCandidate{{Code: "HR-104", Similarity: 0.40}})
	arb.On("Choose", mock.Anything, mock.Anything, mock.Anything).
		Return(&arbiter.Decision{Rationale: "different job family"}, nil)

	got := New(e, ix, arb, DefaultThresholds()).Match(context.Background(), model.JobQuery{Title: "Data Engineer"})

	assert.False(t, got.Matched())
	assert.False(t, got.Degraded)
	assert.Contains(t, got.Rationale, "different job family")
}

func TestMatch_ArbiterEmptyDecisionIsNoMatch(t *testing.T) {
	e, ix, arb := setup([]model.TaxonomyCandidate{{Code: "HR-104", Similarity: 0.50}})
	arb.On("Choose", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	var got model.CanonicalJobMatch
	require.NotPanics(t, func() {
		got = New(e, ix, arb, DefaultThresholds()).Match(context.Background(), model.JobQuery{Title: "Payroll"})
	})
	assert.False(t, got.Matched())
	assert.False(t, got.Degraded)
	assert.Contains(t, got.Rationale, "no decision")
	arb.AssertExpectations(t)
}

func TestMatch_ArbiterPicksUnknownCode(t *testing.T) {
	e, ix, arb := setup([]model.TaxonomyCandidate{{Code: "HR-104", Similarity: 0.40}})
	arb.On("Choose", mock.Anything, mock.Anything, mock.Anything).
		Return(&arbiter.Decision{Code: "HR-999", Confidence: 0.9}, nil)

	got := New(e, ix, arb, DefaultThresholds()).Match(context.Background(), model.JobQuery{Title: "Payroll"})
	assert.False(t, got.Matched())
}

func TestMatch_ArbiterDownDegradesToVectorOnly(t *testing.T) {
	tests := []struct {
		name    string
		best    float64
		matched bool
	}{
		{"accepted above degraded threshold", 0.78, true},
		{"rejected below degraded threshold", 0.55, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ix, arb := setup([]model.TaxonomyCandidate{{Code: "HR-104", Title: "Payroll Specialist", Similarity: tt.best}})
			arb.On("Choose", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("circuit breaker is open"))

			got := New(e, ix, arb, DefaultThresholds()).Match(context.Background(), model.JobQuery{Title: "Payroll"})
			assert.Equal(t, tt.matched, got.Matched())
			assert.True(t, got.Degraded)
			if tt.matched {
				assert.Equal(t, model.MatchMethodVector, got.Method)
			}
		})
	}
}

func TestMatch_NilArbiterIsVectorOnly(t *testing.T) {
	e, ix, _ := setup([]model.TaxonomyCandidate{{Code: "HR-104", Similarity: 0.75}})
	got := New(e, ix, nil, DefaultThresholds()).Match(context.Background(), model.JobQuery{Title: "Payroll"})
	assert.True(t, got.Matched())
	assert.True(t, got.Degraded)
}

func TestMatch_EmbedderDown(t *testing.T) {
	e := &mockEmbedder{}
	e.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("503"))
	ix := &mockIndex{}

	got := New(e, ix, nil, DefaultThresholds()).Match(context.Background(), model.JobQuery{Title: "Payroll"})
	assert.False(t, got.Matched())
	assert.True(t, got.Degraded)
	ix.AssertNotCalled(t, "Nearest", mock.Anything, mock.Anything, mock.Anything)
}

func TestMatch_IndexDown(t *testing.T) {
	e := &mockEmbedder{}
	e.On("Embed", mock.Anything, "Payroll\n\nRuns payroll").Return(vec, nil)
	ix := &mockIndex{}
	ix.On("Nearest", mock.Anything, vec, 5).Return(nil, errors.New("unavailable"))

	got := New(e, ix, nil, DefaultThresholds()).Match(context.Background(), model.JobQuery{Title: "Payroll", Description: "Runs payroll"})
	assert.False(t, got.Matched())
	assert.True(t, got.Degraded)
	e.AssertExpectations(t)
}

func TestMatch_EmptyIndex(t *testing.T) {
	e, ix, _ := setup([]model.TaxonomyCandidate{})
	got := New(e, ix, nil, DefaultThresholds()).Match(context.Background(), model.JobQuery{Title: "Payroll"})
	assert.False(t, got.Matched())
	assert.False(t, got.Degraded)
}

func TestNew_FillsDefaults(t *testing.T) {
	m := New(nil, nil, nil, Thresholds{})
	assert.Equal(t, DefaultThresholds(), m.t)
}
