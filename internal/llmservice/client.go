package llmservice

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
)

var ErrNoCompletion = errors.New("model returned no completion")

// ChunkFunc receives incremental output while a completion is generated.
type ChunkFunc func(ctx context.Context, chunk []byte) error

// GenerateContent makes one completion call and returns the text of the first choice.
// A non-nil onChunk switches the provider to streaming.
func GenerateContent(ctx context.Context, llm llms.Model, messages []llms.MessageContent, onChunk ChunkFunc) (string, error) {
	var opts []llms.CallOption
	if onChunk != nil {
		opts = append(opts, llms.WithStreamingFunc(onChunk))
	}

	res, err := llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if res == nil || len(res.Choices) == 0 || res.Choices[0] == nil {
		return "", ErrNoCompletion
	}
	return res.Choices[0].Content, nil
}
