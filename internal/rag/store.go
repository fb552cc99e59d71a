package rag

import (
	"context"
	"fmt"

	"professor-rag/internal/chromemdb"
	"professor-rag/internal/config"
	"professor-rag/internal/db"
	"professor-rag/internal/models"
	"professor-rag/internal/pineconedb"
)

// Store is a vector index of professor reviews.
//
// Query returns at most topK matches, nearest first. On success the slice is never nil,
// so an empty result stays distinct from a query that never ran.
type Store interface {
	Query(ctx context.Context, vector []float32, topK int) ([]models.RetrievedMatch, error)
	Upsert(ctx context.Context, records []models.ReviewEmbedding) error
	// Reset removes every stored review.
	Reset(ctx context.Context) error
	Close() error
}

// NewStore opens the provider selected in cfg.VectorDB.Provider.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.VectorDB.Provider {
	case config.ProviderPinecone:
		store, err = pineconedb.NewIndexManager(ctx, &cfg.VectorDB)
	case config.ProviderChromem:
		store, err = chromemdb.NewVectorDBManager(&cfg.VectorDB, cfg.RAG.EncryptionKey)
	case config.ProviderPgvector:
		store, err = db.NewStore(ctx, &cfg.Database)
	default:
		return nil, fmt.Errorf("unsupported vector store provider %q", cfg.VectorDB.Provider)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
