package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/comp-pricer/internal/model"
)

func TestPercentiles_LinearInterpolation(t *testing.T) {
	l, err := Percentiles([]float64{50, 10, 40, 20, 30})
	require.NoError(t, err)
	assert.InDelta(t, 14, l.P10, 1e-9)
	assert.InDelta(t, 20, l.P25, 1e-9)
	assert.InDelta(t, 30, l.P50, 1e-9)
	assert.InDelta(t, 40, l.P75, 1e-9)
	assert.InDelta(t, 46, l.P90, 1e-9)
	assert.NoError(t, l.Validate())
}

func TestPercentiles_SingleValue(t *testing.T) {
	l, err := Percentiles([]float64{4200})
	require.NoError(t, err)
	assert.Equal(t, model.Ladder{P10: 4200, P25: 4200, P50: 4200, P75: 4200, P90: 4200}, l)
}

func TestPercentiles_Empty(t *testing.T) {
	_, err := Percentiles(nil)
	assert.Error(t, err)
}

func TestPercentiles_DoesNotMutateInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_, err := Percentiles(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestMedianTime(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC) }
	assert.True(t, medianTime(nil).IsZero())
	assert.Equal(t, d(5), medianTime([]time.Time{d(9), d(1), d(5)}))
	assert.Equal(t, d(2), medianTime([]time.Time{d(1), d(2), d(3), d(4)}))
}

func TestFinalize(t *testing.T) {
	good := model.Ladder{P10: 1, P25: 2, P50: 3, P75: 4, P90: 5}
	tests := []struct {
		name    string
		set     *model.SourceObservationSet
		wantErr error
	}{
		{"nil is fine", nil, nil},
		{"valid", &model.SourceObservationSet{Ladder: good, SampleSize: 3, Quality: 1}, nil},
		{"too small", &model.SourceObservationSet{Ladder: good, SampleSize: 2, Quality: 1}, ErrInsufficientSample},
		{"non-monotonic", &model.SourceObservationSet{Ladder: model.Ladder{P10: 5, P25: 2, P50: 3, P75: 4, P90: 5}, SampleSize: 9}, model.ErrNonMonotonic},
		{"zero salary", &model.SourceObservationSet{Ladder: model.Ladder{P25: 2, P50: 3, P75: 4, P90: 5}, SampleSize: 9}, model.ErrNonPositive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Finalize(tt.set, 3)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	err := Finalize(&model.SourceObservationSet{Ladder: good, SampleSize: 3, Quality: 1.5}, 3)
	assert.Error(t, err)
}
