package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finreg-audit/service"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	DefaultModel          = "gemini-2.5-pro"
	DefaultEmbeddingModel = "text-embedding-004"
)

// ErrMissingAPIKey is returned when no Gemini API key is configured
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY not set")

// NewClient creates a Gemini client for apiKey
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// GeminiCompleter implements service.Completer on the Gemini generate API
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

// NewGeminiCompleter creates a completer for model (DefaultModel when empty)
func NewGeminiCompleter(client *genai.Client, model string) *GeminiCompleter {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiCompleter{client: client, model: model}
}

// Model returns the model identifier used for the audit trail
func (c *GeminiCompleter) Model() string {
	return c.model
}

// Complete sends one system+user exchange and returns the concatenated candidate text
func (c *GeminiCompleter) Complete(ctx context.Context, req service.CompletionRequest) (string, error) {
	m := c.client.GenerativeModel(c.model)
	m.SetTemperature(req.Temperature)
	if req.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	}
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return "", c.wrap(err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", c.wrap(fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason))
	}
	if len(resp.Candidates) == 0 {
		return "", c.wrap(errors.New("no candidates returned"))
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	if b.Len() == 0 {
		return "", c.wrap(fmt.Errorf("%w (finish reason: %s)", service.ErrEmptyResponse, resp.Candidates[0].FinishReason))
	}
	return b.String(), nil
}

func (c *GeminiCompleter) wrap(err error) error {
	return &service.ModelError{Model: c.model, Err: err}
}

// GeminiEmbedder implements service.Embedder and service.QueryEmbedder on the Gemini embedding API.
// Documents and queries are embedded with their retrieval task types.
type GeminiEmbedder struct {
	document *genai.EmbeddingModel
	query    *genai.EmbeddingModel
	name     string
}

// NewGeminiEmbedder creates an embedder for model (DefaultEmbeddingModel when empty)
func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	document := client.EmbeddingModel(model)
	document.TaskType = genai.TaskTypeRetrievalDocument
	query := client.EmbeddingModel(model)
	query.TaskType = genai.TaskTypeRetrievalQuery
	return &GeminiEmbedder{document: document, query: query, name: model}
}

// Embed returns the document embedding of text
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, e.document, text)
}

// EmbedQuery returns the search-query embedding of text
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, e.query, text)
}

func (e *GeminiEmbedder) embed(ctx context.Context, model *genai.EmbeddingModel, text string) ([]float32, error) {
	res, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, &service.ModelError{Model: e.name, Err: err}
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, &service.ModelError{Model: e.name, Err: errors.New("empty embedding")}
	}
	return res.Embedding.Values, nil
}
