package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// OpenAI generates text with the chat completions API.
type OpenAI struct {
	client openai.Client
	model  ModelFunc
}

// NewOpenAI builds a generator. model is consulted on every call so the model
// can change at runtime. Extra request options (base URL, retries) are passed
// through to the SDK.
func NewOpenAI(apiKey string, model ModelFunc, reqOpts ...option.RequestOption) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: API key is required")
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, reqOpts...)
	return &OpenAI{client: openai.NewClient(all...), model: model}, nil
}

// Generate sends the system prompt and user prompt and returns the first choice.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: o.model.resolve(DefaultModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: no completions returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping lists the available models to verify connectivity and credentials.
func (o *OpenAI) Ping(ctx context.Context) error {
	if _, err := o.client.Models.List(ctx); err != nil {
		return fmt.Errorf("llm: list models: %w", err)
	}
	return nil
}
