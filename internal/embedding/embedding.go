package embedding

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"

	"professor-rag/internal/config"
	"professor-rag/internal/models"
)

// Embedder is the langchaingo embedder backed by Gemini.
type Embedder struct {
	*embeddings.EmbedderImpl
}

// NewGeminiEmbedder creates a Gemini-backed embedder. It is meant to be built once
// per process and shared between requests.
func NewGeminiEmbedder(ctx context.Context, llmConfig *config.LLMConfig) (*Embedder, error) {
	log.Debug().Str("embedding_model", llmConfig.Model).Msg("Creating embedder")

	client, err := googleai.New(ctx,
		googleai.WithAPIKey(llmConfig.Key),
		googleai.WithDefaultEmbeddingModel(llmConfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return newEmbedder(client)
}

// newEmbedder keeps texts byte for byte; the query that is embedded is exactly
// the message the user sent.
func newEmbedder(client embeddings.EmbedderClient) (*Embedder, error) {
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &Embedder{EmbedderImpl: embedder}, nil
}

// GenerateEmbedding embeds a single query text.
func GenerateEmbedding(ctx context.Context, embedder embeddings.Embedder, text string) ([]float32, error) {
	vector, err := embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("embedder returned an empty vector")
	}
	return vector, nil
}

// EmbedReviews embeds the review text of every record, in order.
func EmbedReviews(ctx context.Context, embedder embeddings.Embedder, reviews []models.ProfessorReview) ([]models.ReviewEmbedding, error) {
	if len(reviews) == 0 {
		log.Info().Msg("No reviews to embed")
		return nil, nil
	}

	texts := make([]string, len(reviews))
	for i, r := range reviews {
		texts[i] = r.Review
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(reviews) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d reviews", len(vectors), len(reviews))
	}

	out := make([]models.ReviewEmbedding, len(reviews))
	for i, r := range reviews {
		out[i] = models.ReviewEmbedding{ProfessorReview: r, Embedding: vectors[i]}
	}
	return out, nil
}
