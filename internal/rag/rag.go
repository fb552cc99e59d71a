package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"professor-rag/internal/config"
	"professor-rag/internal/embedding"
	"professor-rag/internal/llmservice"
	"professor-rag/internal/models"
)

var (
	ErrEmptyConversation = errors.New("conversation must contain at least one message")
	ErrEmptyQuery        = errors.New("last message has no content")
	ErrNoCompletion      = llmservice.ErrNoCompletion
)

// UpstreamError marks a failure of an embedding, retrieval or generation call.
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// RAG answers professor questions from the reviews in a vector store.
// The clients it holds are shared by all requests.
type RAG struct {
	store    Store
	embedder embeddings.Embedder
	llm      llms.Model
	topK     int
}

func NewRAG(store Store, embedder embeddings.Embedder, llm llms.Model, cfg *config.Config) *RAG {
	topK := cfg.RAG.TopK
	if topK <= 0 {
		topK = 3
	}
	return &RAG{store: store, embedder: embedder, llm: llm, topK: topK}
}

// Query runs the pipeline for one conversation and returns the generated answer.
// When onChunk is non-nil the model's output is also handed to it as it is produced.
func (r *RAG) Query(ctx context.Context, conversation []models.Message, onChunk llmservice.ChunkFunc) (string, error) {
	query, err := ExtractQueryText(conversation)
	if err != nil {
		return "", err
	}
	log.Ctx(ctx).Debug().Str("query", query).Int("turns", len(conversation)).Msg("Answering query")

	vector, err := embedding.GenerateEmbedding(ctx, r.embedder, query)
	if err != nil {
		return "", &UpstreamError{Stage: "embedding query", Err: err}
	}

	matches, err := r.retrieve(ctx, vector)
	if err != nil {
		return "", &UpstreamError{Stage: "searching vectors", Err: err}
	}
	log.Ctx(ctx).Debug().Int("dimensions", len(vector)).Int("matches", len(matches)).Msg("Retrieved professors")

	last := conversation[len(conversation)-1]
	history := conversation[:len(conversation)-1]
	turns := BuildConversation(models.SystemPrompt, last, RenderRetrievalBlock(matches), history)

	answer, err := llmservice.GenerateContent(ctx, r.llm, turns, onChunk)
	if err != nil {
		return "", &UpstreamError{Stage: "generating response", Err: err}
	}
	return answer, nil
}

func (r *RAG) retrieve(ctx context.Context, vector []float32) ([]models.RetrievedMatch, error) {
	matches, err := r.store.Query(ctx, vector, r.topK)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []models.RetrievedMatch{}
	}
	if len(matches) > r.topK {
		matches = matches[:r.topK]
	}
	return matches, nil
}

// ExtractQueryText returns the content of the last message.
func ExtractQueryText(conversation []models.Message) (string, error) {
	if len(conversation) == 0 {
		return "", ErrEmptyConversation
	}
	text := conversation[len(conversation)-1].Content
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyQuery
	}
	return text, nil
}

// RenderRetrievalBlock formats matches in rank order after the results header.
func RenderRetrievalBlock(matches []models.RetrievedMatch) string {
	var sb strings.Builder
	sb.WriteString(models.RetrievalHeader)
	for _, m := range matches {
		fmt.Fprintf(&sb, models.RecordTemplate,
			m.Professor,
			m.Subject,
			strconv.FormatFloat(m.StarRating, 'f', -1, 64),
			m.Review,
		)
	}
	return sb.String()
}

// BuildConversation makes the turns sent to the model. The first turn carries the
// instructions, the query and the retrieved records. Earlier messages follow with
// roles assigned by position (even = user, odd = model); their own Role is ignored.
func BuildConversation(systemInstructions string, last models.Message, retrievalBlock string, history []models.Message) []llms.MessageContent {
	turns := make([]llms.MessageContent, 0, len(history)+1)
	turns = append(turns, llms.MessageContent{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.TextContent{Text: systemInstructions + models.QuerySeparator + last.Content + retrievalBlock},
		},
	})

	for i, msg := range history {
		role := llms.ChatMessageTypeHuman
		if i%2 == 1 {
			role = llms.ChatMessageTypeAI
		}
		turns = append(turns, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextContent{Text: msg.Content}},
		})
	}
	return turns
}
