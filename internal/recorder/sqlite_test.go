package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/comp-pricer/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteRecorder {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	rec, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() }) //nolint:errcheck
	require.NoError(t, rec.Migrate(context.Background()))
	return rec
}

func TestSQLite_RecordAndGet(t *testing.T) {
	rec := newTestSQLite(t)
	ctx := context.Background()
	want := sampleResult("r1", "req-1")

	require.NoError(t, rec.Record(ctx, want))

	got, err := rec.Get(ctx, "r1")
	require.NoError(t, err)

	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, want.Query, got.Query)
	assert.Equal(t, want.Match, got.Match)
	assert.Equal(t, want.Breakdown, got.Breakdown)
	assert.Equal(t, want.Quality, got.Quality)
	assert.Equal(t, 62, got.Confidence)
	assert.Equal(t, model.ConfidenceMedium, got.Level)
	assert.True(t, got.CreatedAt.Equal(created))

	// Salaries keep two decimals.
	assert.Equal(t, 4461.54, got.Ladder.P10)
	assert.Equal(t, 6384.62, got.Target)

	require.Len(t, got.Contributions, 2)
	c := got.Contributions[1]
	assert.Equal(t, model.SourceScrapedListings, c.Source)
	assert.Equal(t, 0.3846, c.AppliedWeight)
	assert.Equal(t, 0.75, c.Decay)
	assert.Equal(t, 20, c.SampleSize)
	assert.True(t, c.AsOf.Equal(want.Contributions[1].AsOf))
}

func TestSQLite_Get_NotFound(t *testing.T) {
	rec := newTestSQLite(t)

	_, err := rec.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsStorageFailure(err))
}

func TestSQLite_RetriesCoexist(t *testing.T) {
	rec := newTestSQLite(t)
	ctx := context.Background()

	first := sampleResult("r1", "req-1")
	retry := sampleResult("r2", "req-1")
	retry.CreatedAt = created.Add(time.Minute)
	retry.Contributions = retry.Contributions[:1]
	other := sampleResult("r3", "req-2")

	require.NoError(t, rec.Record(ctx, first))
	require.NoError(t, rec.Record(ctx, retry))
	require.NoError(t, rec.Record(ctx, other))

	got, err := rec.ListByRequest(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r1", got[0].ID)
	assert.Len(t, got[0].Contributions, 2)
	assert.Equal(t, "r2", got[1].ID)
	assert.Len(t, got[1].Contributions, 1)
}

func TestSQLite_FallbackWithoutContributions(t *testing.T) {
	rec := newTestSQLite(t)
	ctx := context.Background()

	r := sampleResult("r1", "req-1")
	r.Contributions = nil
	r.Fallback = true
	r.Confidence = 10
	r.Level = model.ConfidenceLow

	require.NoError(t, rec.Record(ctx, r))

	got, err := rec.Get(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, got.Fallback)
	assert.Empty(t, got.Contributions)
}

func TestSQLite_DuplicateIDIsAtomic(t *testing.T) {
	rec := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, rec.Record(ctx, sampleResult("r1", "req-1")))

	// Same id again: the parent insert fails and nothing new is written.
	dup := sampleResult("r1", "req-2")
	err := rec.Record(ctx, dup)
	require.Error(t, err)
	assert.True(t, IsStorageFailure(err))

	got, err := rec.ListByRequest(ctx, "req-2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_ChildFailureRollsBackParent(t *testing.T) {
	rec := newTestSQLite(t)
	ctx := context.Background()

	// Two contributions from the same source violate the primary key.
	r := sampleResult("r1", "req-1")
	r.Contributions[1].Source = r.Contributions[0].Source

	err := rec.Record(ctx, r)
	require.Error(t, err)
	assert.True(t, IsStorageFailure(err))
	assert.Contains(t, err.Error(), "insert contributions")

	_, err = rec.Get(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListByRequest_Empty(t *testing.T) {
	rec := newTestSQLite(t)
	got, err := rec.ListByRequest(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ClosedDatabaseIsStorageFailure(t *testing.T) {
	rec := newTestSQLite(t)
	require.NoError(t, rec.Close())

	err := rec.Record(context.Background(), sampleResult("r1", "req-1"))
	require.Error(t, err)
	assert.True(t, IsStorageFailure(err))
}

func TestRecorderInterfaces(t *testing.T) {
	var _ Recorder = (*SQLiteRecorder)(nil)
	var _ Recorder = (*PostgresRecorder)(nil)
}
