package semantic

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/patent-search/pkg/fn"
	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// DefaultBatchSize is the number of points sent per upsert request.
const DefaultBatchSize = 100

// DefaultTimeout bounds every individual Qdrant call.
const DefaultTimeout = 10 * time.Second

// ErrUpsert marks a failed batch write. Earlier batches may already be stored.
var ErrUpsert = errors.New("semantic: upsert failed")

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	timeout     time.Duration
	logger      *slog.Logger
}

// Option configures New.
type Option func(*options)

type options struct {
	apiKey  string
	tls     bool
	timeout time.Duration
	logger  *slog.Logger
}

// WithAPIKey sends key as the api-key header on every call.
func WithAPIKey(key string) Option { return func(o *options) { o.apiKey = key } }

// WithTLS dials with system TLS credentials instead of plaintext.
func WithTLS(enabled bool) Option { return func(o *options) { o.tls = enabled } }

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithLogger sets the logger used for batch progress.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr, collection string, opts ...Option) (*VectorStore, error) {
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	creds := insecure.NewCredentials()
	if o.tls {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	dial := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if o.apiKey != "" {
		dial = append(dial, grpc.WithUnaryInterceptor(apiKeyInterceptor(o.apiKey)))
	}

	conn, err := grpc.NewClient(addr, dial...)
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	vs := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection)
	vs.conn = conn
	vs.timeout = o.timeout
	if o.logger != nil {
		vs.logger = o.logger
	}
	return vs, nil
}

// NewWithClients builds a VectorStore over already constructed clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *VectorStore {
	return &VectorStore{
		points:      points,
		collections: collections,
		collection:  collection,
		timeout:     DefaultTimeout,
		logger:      slog.Default(),
	}
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Collection returns the target collection name.
func (v *VectorStore) Collection() string { return v.collection }

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

func (v *VectorStore) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, v.timeout)
}

// EnsureCollection creates the collection with cosine distance if it
// doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	ctx, cancel := v.callCtx(ctx)
	defer cancel()

	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// PointID maps a vector id onto the UUID Qdrant requires. The mapping is
// stable, so re-upserting the same vector id overwrites the same point.
func PointID(vectorID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(vectorID)).String()
}

// Upsert writes records in batches of batchSize (DefaultBatchSize when <= 0),
// stopping at the first failed batch.
func (v *VectorStore) Upsert(ctx context.Context, records []VectorRecord, batchSize int) error {
	if len(records) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	batches := fn.Chunk(records, batchSize)
	for i, batch := range batches {
		if err := v.upsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("%w: batch %d/%d (%d points): %w", ErrUpsert, i+1, len(batches), len(batch), err)
		}
		v.logger.Info("semantic: batch upserted",
			"collection", v.collection,
			"batch", i+1,
			"batches", len(batches),
			"points", len(batch),
		)
	}
	return nil
}

func (v *VectorStore) upsertBatch(ctx context.Context, batch []VectorRecord) error {
	ctx, cancel := v.callCtx(ctx)
	defer cancel()

	points := fn.Map(batch, toPoint)
	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	return err
}

func toPoint(r VectorRecord) *pb.PointStruct {
	return &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(r.ID)},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{Data: r.Values},
			},
		},
		Payload: map[string]*pb.Value{
			payloadVectorID:     stringValue(r.ID),
			payloadPatentNumber: stringValue(r.PatentNumber),
			payloadTitle:        stringValue(r.Title),
		},
	}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

// Query returns up to topK nearest matches for vector, best first.
func (v *VectorStore) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	ctx, cancel := v.callCtx(ctx)
	defer cancel()

	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	return fn.Map(resp.GetResult(), toMatch), nil
}

func toMatch(p *pb.ScoredPoint) Match {
	payload := p.GetPayload()
	m := Match{
		ID:           payload[payloadVectorID].GetStringValue(),
		Score:        p.GetScore(),
		PatentNumber: payload[payloadPatentNumber].GetStringValue(),
		Title:        payload[payloadTitle].GetStringValue(),
	}
	if m.ID == "" {
		m.ID = p.GetId().GetUuid()
	}
	return m
}

// Count returns the exact number of points in the collection.
func (v *VectorStore) Count(ctx context.Context) (uint64, error) {
	ctx, cancel := v.callCtx(ctx)
	defer cancel()

	exact := true
	resp, err := v.points.Count(ctx, &pb.CountPoints{
		CollectionName: v.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("semantic: count %s: %w", v.collection, err)
	}
	return resp.GetResult().GetCount(), nil
}
