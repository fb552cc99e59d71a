package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"professor-rag/internal/embedding"
	"professor-rag/internal/models"
	"professor-rag/internal/parser"
)

// Writer is the write side of a vector store.
type Writer interface {
	Upsert(ctx context.Context, records []models.ReviewEmbedding) error
	Reset(ctx context.Context) error
}

// Seeder embeds professor reviews and writes them to a vector store in batches.
type Seeder struct {
	embedder  embeddings.Embedder
	store     Writer
	batchSize int
}

func NewSeeder(embedder embeddings.Embedder, store Writer, batchSize int) *Seeder {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Seeder{embedder: embedder, store: store, batchSize: batchSize}
}

// SeedFile loads reviews from filePath and stores them. With reset the store is
// emptied first, but only once the file has parsed. It returns the number written.
func (s *Seeder) SeedFile(ctx context.Context, filePath string, reset bool) (int, error) {
	reviews, err := parser.ParseReviews(filePath)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", filePath, err)
	}
	log.Info().Int("reviews", len(reviews)).Str("file", filePath).Msg("Parsed reviews")
	if reset {
		if err := s.store.Reset(ctx); err != nil {
			return 0, fmt.Errorf("reset store: %w", err)
		}
		log.Info().Msg("Removed stored reviews")
	}
	return s.Seed(ctx, reviews)
}

func (s *Seeder) Seed(ctx context.Context, reviews []models.ProfessorReview) (int, error) {
	written := 0
	for start := 0; start < len(reviews); start += s.batchSize {
		end := start + s.batchSize
		if end > len(reviews) {
			end = len(reviews)
		}
		batch, err := embedding.EmbedReviews(ctx, s.embedder, reviews[start:end])
		if err != nil {
			return written, fmt.Errorf("embed reviews %d-%d: %w", start, end, err)
		}
		if err := s.store.Upsert(ctx, batch); err != nil {
			return written, fmt.Errorf("store reviews %d-%d: %w", start, end, err)
		}
		written += len(batch)
		log.Debug().Int("written", written).Int("total", len(reviews)).Msg("Seed progress")
	}
	return written, nil
}
