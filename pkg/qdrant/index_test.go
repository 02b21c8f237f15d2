package qdrant

import (
	"context"
	"testing"

	qd "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type mockQuery struct {
	mock.Mock
}

func (m *mockQuery) Query(ctx context.Context, req *qd.QueryPoints) ([]*qd.ScoredPoint, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*qd.ScoredPoint), args.Error(1)
}

func point(score float32, payload map[string]any) *qd.ScoredPoint {
	return &qd.ScoredPoint{Score: score, Payload: qd.NewValueMap(payload)}
}

func TestNearest_MapsPayload(t *testing.T) {
	m := &mockQuery{}
	m.On("Query", mock.Anything, mock.MatchedBy(func(req *qd.QueryPoints) bool {
		return req.GetCollectionName() == "job_taxonomy" && req.GetLimit() == 5
	})).Return([]*qd.ScoredPoint{
		point(0.91, map[string]any{"code": "HR-104", "title": "Payroll Specialist", "description": "Runs payroll"}),
		point(0.62, map[string]any{"code": "HR-110", "title": "Benefits Administrator"}),
	}, nil)

	ix := &Index{client: m, collection: "job_taxonomy"}
	got, err := ix.Nearest(context.Background(), []float32{0.1, 0.2}, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "HR-104", got[0].Code)
	assert.Equal(t, "Payroll Specialist", got[0].Title)
	assert.Equal(t, "Runs payroll", got[0].Description)
	assert.InDelta(t, 0.91, got[0].Similarity, 1e-6)
	assert.Equal(t, "", got[1].Description)
	m.AssertExpectations(t)
}

func TestNearest_SkipsPointsWithoutCode(t *testing.T) {
	m := &mockQuery{}
	m.On("Query", mock.Anything, mock.Anything).Return([]*qd.ScoredPoint{
		point(0.8, map[string]any{"title": "Orphan"}),
		point(0.7, map[string]any{"code": 42}),
		point(0.6, map[string]any{"code": "HR-200", "title": "Recruiter"}),
	}, nil)

	ix := &Index{client: m, collection: "job_taxonomy"}
	got, err := ix.Nearest(context.Background(), []float32{1}, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "HR-200", got[0].Code)
}

func TestNearest_Error(t *testing.T) {
	m := &mockQuery{}
	m.On("Query", mock.Anything, mock.Anything).Return(nil, status.Error(codes.NotFound, "collection missing"))

	ix := &Index{client: m, collection: "job_taxonomy"}
	_, err := ix.Nearest(context.Background(), []float32{1}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qdrant: query job_taxonomy")
}

func TestNearest_ZeroK(t *testing.T) {
	ix := &Index{client: &mockQuery{}, collection: "job_taxonomy"}
	got, err := ix.Nearest(context.Background(), []float32{1}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient("localhost", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no host")
}
