package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

// --- Mocks ---

type mockPoints struct {
	searchResp *pb.SearchResponse
	searchErr  error
	countResp  *pb.CountResponse
	countErr   error

	lastSearch *pb.SearchPoints
	lastCount  *pb.CountPoints
}

func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.lastSearch = in
	return m.searchResp, m.searchErr
}

func (m *mockPoints) Count(_ context.Context, in *pb.CountPoints, _ ...grpc.CallOption) (*pb.CountResponse, error) {
	m.lastCount = in
	return m.countResp, m.countErr
}

type mockCollections struct {
	listResp   *pb.ListCollectionsResponse
	listErr    error
	deleteResp *pb.CollectionOperationResponse
	deleteErr  error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}

func (m *mockCollections) Delete(_ context.Context, _ *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	return m.deleteResp, m.deleteErr
}

func str(s string) *pb.Value    { return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}} }
func integer(n int64) *pb.Value { return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: n}} }

// --- Tests ---

func TestNewWithClients_CloseWithoutConn(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{}, "support")
	require.NotNil(t, vs)
	assert.Equal(t, "support", vs.Collection())
	assert.NoError(t, vs.Close())
}

func TestQuery_ConvertsScoresAndPayload(t *testing.T) {
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{
				{
					Score: 0.9,
					Payload: map[string]*pb.Value{
						"document": str("タイトル: 操作ガイド\n内容: 本文"),
						"type":     str("manual"),
						"title":    str("操作ガイド"),
						"page":     integer(12),
						"ratio":    {Kind: &pb.Value_DoubleValue{DoubleValue: 0.5}},
						"active":   {Kind: &pb.Value_BoolValue{BoolValue: true}},
						"missing":  {Kind: &pb.Value_NullValue{}},
					},
				},
				{
					Score:   0.25,
					Payload: map[string]*pb.Value{"document": str("second")},
				},
			},
		},
	}
	vs := NewWithClients(pts, &mockCollections{}, "support")

	res, err := vs.Query(context.Background(), []float32{1, 0}, 5, map[string]string{"type": "manual"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())

	assert.Equal(t, "タイトル: 操作ガイド\n内容: 本文", res.Documents[0])
	assert.InDelta(t, 0.1, res.Distances[0], 1e-6)
	assert.InDelta(t, 0.75, res.Distances[1], 1e-6)

	meta := res.Metadatas[0]
	assert.Equal(t, "manual", meta["type"])
	assert.Equal(t, int64(12), meta["page"])
	assert.Equal(t, 0.5, meta["ratio"])
	assert.Equal(t, true, meta["active"])
	assert.Nil(t, meta["missing"])
	assert.NotContains(t, meta, "document")

	require.NotNil(t, pts.lastSearch)
	assert.Equal(t, uint64(5), pts.lastSearch.GetLimit())
	assert.Equal(t, "support", pts.lastSearch.GetCollectionName())
	must := pts.lastSearch.GetFilter().GetMust()
	require.Len(t, must, 1)
	assert.Equal(t, "type", must[0].GetField().GetKey())
	assert.Equal(t, "manual", must[0].GetField().GetMatch().GetKeyword())
}

func TestQuery_NoFilter(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "support")

	res, err := vs.Query(context.Background(), []float32{1}, 3, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Len())
	assert.Nil(t, pts.lastSearch.GetFilter())
}

func TestQuery_ZeroK(t *testing.T) {
	pts := &mockPoints{searchErr: errors.New("should not be called")}
	vs := NewWithClients(pts, &mockCollections{}, "support")

	res, err := vs.Query(context.Background(), []float32{1}, 0, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Len())
	assert.Nil(t, pts.lastSearch)
}

func TestQuery_Error(t *testing.T) {
	pts := &mockPoints{searchErr: errors.New("unavailable")}
	vs := NewWithClients(pts, &mockCollections{}, "support")

	_, err := vs.Query(context.Background(), []float32{1}, 3, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "semantic: query")
}

func TestCount(t *testing.T) {
	pts := &mockPoints{countResp: &pb.CountResponse{Result: &pb.CountResult{Count: 42}}}
	vs := NewWithClients(pts, &mockCollections{}, "support")

	n, err := vs.Count(context.Background(), map[string]string{"type": "faq"})
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.True(t, pts.lastCount.GetExact())
	assert.Equal(t, "faq", pts.lastCount.GetFilter().GetMust()[0].GetField().GetMatch().GetKeyword())
}

func TestCount_Error(t *testing.T) {
	vs := NewWithClients(&mockPoints{countErr: errors.New("fail")}, &mockCollections{}, "support")
	_, err := vs.Count(context.Background(), nil)
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "other"}, {Name: "support"}},
		},
	}
	vs := NewWithClients(&mockPoints{}, cols, "support")
	ok, err := vs.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	vs = NewWithClients(&mockPoints{}, cols, "missing")
	ok, err = vs.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	vs = NewWithClients(&mockPoints{}, &mockCollections{listErr: errors.New("down")}, "support")
	_, err = vs.Exists(context.Background())
	assert.Error(t, err)
}

func TestDeleteCollection(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{deleteResp: &pb.CollectionOperationResponse{Result: true}}, "support")
	assert.NoError(t, vs.DeleteCollection(context.Background()))

	vs = NewWithClients(&mockPoints{}, &mockCollections{deleteErr: errors.New("fail")}, "support")
	assert.Error(t, vs.DeleteCollection(context.Background()))
}

func TestFieldMatch(t *testing.T) {
	cond := fieldMatch("key", "value")
	fc := cond.GetField()
	assert.Equal(t, "key", fc.Key)
	assert.Equal(t, "value", fc.Match.GetKeyword())
}
