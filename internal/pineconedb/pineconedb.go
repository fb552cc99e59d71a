package pineconedb

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"

	"professor-rag/internal/config"
	"professor-rag/internal/models"
)

// indexConn is the part of *pinecone.IndexConnection the store uses.
type indexConn interface {
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	DeleteAllVectorsInNamespace(ctx context.Context) error
	Close() error
}

// IndexManager queries and writes one namespace of a Pinecone index.
type IndexManager struct {
	conn      indexConn
	namespace string
}

// NewIndexManager connects to the configured index. When no host is configured the
// index is described once to find it.
func NewIndexManager(ctx context.Context, cfg *config.VectorDBConfig) (*IndexManager, error) {
	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.Key})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}

	host := cfg.Host
	if host == "" {
		idx, err := pc.DescribeIndex(ctx, cfg.Index)
		if err != nil {
			return nil, fmt.Errorf("failed to describe index %s: %w", cfg.Index, err)
		}
		host = idx.Host
	}
	log.Debug().Str("index", cfg.Index).Str("host", host).Str("namespace", cfg.Namespace).Msg("Connecting to pinecone")

	conn, err := pc.Index(pinecone.NewIndexConnParams{Host: host, Namespace: cfg.Namespace})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index %s: %w", cfg.Index, err)
	}
	return &IndexManager{conn: conn, namespace: cfg.Namespace}, nil
}

// Query returns up to topK matches, nearest first, with their metadata.
func (m *IndexManager) Query(ctx context.Context, vector []float32, topK int) ([]models.RetrievedMatch, error) {
	res, err := m.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query namespace %s: %w", m.namespace, err)
	}

	matches := make([]models.RetrievedMatch, 0, len(res.Matches))
	for _, sv := range res.Matches {
		if sv == nil || sv.Vector == nil {
			continue
		}
		matches = append(matches, toMatch(sv))
		if len(matches) == topK {
			break
		}
	}
	return matches, nil
}

// Upsert writes one vector per review. The professor name is the vector id.
func (m *IndexManager) Upsert(ctx context.Context, records []models.ReviewEmbedding) error {
	if len(records) == 0 {
		return nil
	}
	vectors := make([]*pinecone.Vector, 0, len(records))
	for _, r := range records {
		meta, err := structpb.NewStruct(map[string]interface{}{
			models.MetaSubject:    r.Subject,
			models.MetaStarRating: r.Stars,
			models.MetaReview:     r.Review,
		})
		if err != nil {
			return fmt.Errorf("failed to build metadata for %s: %w", r.Professor, err)
		}
		vectors = append(vectors, &pinecone.Vector{
			Id:       r.Professor,
			Values:   r.Embedding,
			Metadata: meta,
		})
	}

	n, err := m.conn.UpsertVectors(ctx, vectors)
	if err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	log.Info().Uint32("upserted", n).Str("namespace", m.namespace).Msg("Upserted vectors")
	return nil
}

// Reset deletes every vector in the namespace.
func (m *IndexManager) Reset(ctx context.Context) error {
	if err := m.conn.DeleteAllVectorsInNamespace(ctx); err != nil {
		return fmt.Errorf("failed to clear namespace %s: %w", m.namespace, err)
	}
	return nil
}

func (m *IndexManager) Close() error {
	return m.conn.Close()
}

func toMatch(sv *pinecone.ScoredVector) models.RetrievedMatch {
	match := models.RetrievedMatch{
		Professor: sv.Vector.Id,
		Score:     sv.Score,
	}
	if sv.Vector.Metadata == nil {
		return match
	}
	meta := sv.Vector.Metadata.AsMap()
	match.Subject = metaString(meta[models.MetaSubject])
	match.Review = metaString(meta[models.MetaReview])
	if v, ok := meta[models.MetaStarRating]; ok {
		match.StarRating = metaFloat(v)
	} else {
		match.StarRating = metaFloat(meta[models.MetaStars])
	}
	return match
}

func metaString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func metaFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
