package llmservice

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"

	"professor-rag/internal/config"
	"professor-rag/internal/models"
)

// Gemini is an llms.Model that sends the conversation to Gemini turn for turn.
// Every turn keeps the role it was given, including the last one, and no
// sampling parameters are sent unless a call option sets them.
type Gemini struct {
	client *genai.Client
	model  string
}

var _ llms.Model = (*Gemini)(nil)

// Option configures the Gemini client.
type Option func(*genai.ClientConfig)

// WithHTTPClient sends every request through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(cc *genai.ClientConfig) {
		cc.HTTPClient = hc
	}
}

// NewGeminiModel creates the generative model client used for every request.
func NewGeminiModel(ctx context.Context, llmConfig *config.LLMConfig, opts ...Option) (*Gemini, error) {
	log.Debug().Str("model", llmConfig.Model).Bool("stream", llmConfig.Stream).Msg("Creating generative model")
	cc := &genai.ClientConfig{
		APIKey:  llmConfig.Key,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cc)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &Gemini{client: client, model: llmConfig.Model}, nil
}

func (g *Gemini) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g, prompt, options...)
}

// GenerateContent implements llms.Model. With a streaming func set, each partial
// response is handed to it before the next one is read.
func (g *Gemini) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{Model: g.model}
	for _, opt := range options {
		opt(&opts)
	}

	contents, system, err := toContents(messages)
	if err != nil {
		return nil, err
	}
	cfg := generateConfig(&opts)
	cfg.SystemInstruction = system

	if opts.StreamingFunc == nil {
		res, err := g.client.Models.GenerateContent(ctx, opts.Model, contents, cfg)
		if err != nil {
			return nil, err
		}
		return toResponse(res), nil
	}

	var (
		sb     strings.Builder
		reason string
	)
	for res, err := range g.client.Models.GenerateContentStream(ctx, opts.Model, contents, cfg) {
		if err != nil {
			return nil, err
		}
		if len(res.Candidates) == 0 || res.Candidates[0] == nil {
			continue
		}
		cand := res.Candidates[0]
		if cand.FinishReason != "" {
			reason = string(cand.FinishReason)
		}
		chunk := candidateText(cand)
		if chunk == "" {
			continue
		}
		if err := opts.StreamingFunc(ctx, []byte(chunk)); err != nil {
			return nil, err
		}
		sb.WriteString(chunk)
	}
	if sb.Len() == 0 {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: sb.String(), StopReason: reason}}}, nil
}

// toContents maps langchaingo turns onto Gemini contents one to one. System turns
// become the system instruction.
func toContents(messages []llms.MessageContent) ([]*genai.Content, *genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	var system *genai.Content
	for i, msg := range messages {
		parts := make([]*genai.Part, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			text, ok := p.(llms.TextContent)
			if !ok {
				return nil, nil, fmt.Errorf("message %d: unsupported content part %T", i, p)
			}
			parts = append(parts, &genai.Part{Text: text.Text})
		}

		switch msg.Role {
		case llms.ChatMessageTypeSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, parts...)
		case llms.ChatMessageTypeHuman, llms.ChatMessageTypeGeneric:
			contents = append(contents, &genai.Content{Role: models.RoleUser, Parts: parts})
		case llms.ChatMessageTypeAI:
			contents = append(contents, &genai.Content{Role: models.RoleModel, Parts: parts})
		default:
			return nil, nil, fmt.Errorf("message %d: unsupported role %q", i, msg.Role)
		}
	}
	return contents, system, nil
}

func generateConfig(opts *llms.CallOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if opts.Temperature != 0 {
		cfg.Temperature = ptr(float32(opts.Temperature))
	}
	if opts.TopP != 0 {
		cfg.TopP = ptr(float32(opts.TopP))
	}
	if opts.TopK != 0 {
		cfg.TopK = ptr(float32(opts.TopK))
	}
	if opts.MaxTokens != 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.CandidateCount != 0 {
		cfg.CandidateCount = int32(opts.CandidateCount)
	}
	if len(opts.StopWords) > 0 {
		cfg.StopSequences = opts.StopWords
	}
	return cfg
}

func toResponse(res *genai.GenerateContentResponse) *llms.ContentResponse {
	out := &llms.ContentResponse{}
	if res == nil {
		return out
	}
	for _, cand := range res.Candidates {
		if cand == nil {
			continue
		}
		out.Choices = append(out.Choices, &llms.ContentChoice{
			Content:    candidateText(cand),
			StopReason: string(cand.FinishReason),
		})
	}
	return out
}

func candidateText(cand *genai.Candidate) string {
	if cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if p != nil && !p.Thought {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func ptr[T any](v T) *T {
	return &v
}
