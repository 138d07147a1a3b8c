package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type pointsAPI interface {
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the sole owner of all Qdrant operations. The collection is
// expected to use cosine distance.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients builds a VectorStore on pre-built clients. Used in tests.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

// Collection returns the collection name.
func (v *VectorStore) Collection() string { return v.collection }

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// Exists reports whether the collection is present.
func (v *VectorStore) Exists(ctx context.Context) (bool, error) {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return true, nil
		}
	}
	return false, nil
}

// DeleteCollection deletes the collection.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: v.collection,
	})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// Query returns the k nearest points to vector whose payload matches every
// key/value in filter. Distances are 1 - cosine score.
func (v *VectorStore) Query(ctx context.Context, vector []float32, k int, filter map[string]string) (QueryResult, error) {
	if k <= 0 {
		return QueryResult{}, nil
	}
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         vector,
		Limit:          uint64(k),
		Filter:         buildFilter(filter),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return QueryResult{}, fmt.Errorf("semantic: query: %w", err)
	}

	hits := resp.GetResult()
	out := QueryResult{
		Documents: make([]string, len(hits)),
		Metadatas: make([]map[string]any, len(hits)),
		Distances: make([]float64, len(hits)),
	}
	for i, h := range hits {
		meta := make(map[string]any, len(h.GetPayload()))
		for key, val := range h.GetPayload() {
			if key == DocumentKey {
				out.Documents[i] = val.GetStringValue()
				continue
			}
			meta[key] = fromValue(val)
		}
		out.Metadatas[i] = meta
		out.Distances[i] = 1 - float64(h.GetScore())
	}
	return out, nil
}

// Count returns the exact number of points matching filter.
func (v *VectorStore) Count(ctx context.Context, filter map[string]string) (int, error) {
	exact := true
	resp, err := v.points.Count(ctx, &pb.CountPoints{
		CollectionName: v.collection,
		Filter:         buildFilter(filter),
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("semantic: count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func buildFilter(filter map[string]string) *pb.Filter {
	if len(filter) == 0 {
		return nil
	}
	must := make([]*pb.Condition, 0, len(filter))
	for k, val := range filter {
		must = append(must, fieldMatch(k, val))
	}
	return &pb.Filter{Must: must}
}

func fromValue(val *pb.Value) any {
	switch kv := val.GetKind().(type) {
	case *pb.Value_StringValue:
		return kv.StringValue
	case *pb.Value_IntegerValue:
		return kv.IntegerValue
	case *pb.Value_DoubleValue:
		return kv.DoubleValue
	case *pb.Value_BoolValue:
		return kv.BoolValue
	default:
		return nil
	}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
