package ollama

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/supportdesk/supportbot/pkg/llm"
)

// ChatClient generates answers with Ollama's /api/chat endpoint.
type ChatClient struct {
	baseURL  string
	model    string
	override llm.ModelFunc
	client   *http.Client
}

// NewChatClient creates a non-streaming Ollama chat client. override, when
// non-nil, is consulted on every call so the model can change at runtime.
func NewChatClient(baseURL, model string, override llm.ModelFunc) *ChatClient {
	return &ChatClient{
		baseURL:  baseURL,
		model:    model,
		override: override,
		client:   &http.Client{Timeout: 300 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResp struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Generate sends a system and a user message and returns the assistant reply.
func (c *ChatClient) Generate(ctx context.Context, r llm.Request) (string, error) {
	in := chatReq{
		Model: c.override.Resolve(c.model),
		Messages: []chatMessage{
			{Role: "system", Content: r.System},
			{Role: "user", Content: r.User},
		},
		Options: map[string]any{"temperature": r.Temperature},
	}
	if r.MaxTokens > 0 {
		in.Options["num_predict"] = r.MaxTokens
	}
	var out chatResp
	if err := call(ctx, c.client, http.MethodPost, c.baseURL+"/api/chat", in, &out); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return out.Message.Content, nil
}

// Ping checks that the Ollama server answers /api/tags.
func (c *ChatClient) Ping(ctx context.Context) error {
	if err := call(ctx, c.client, http.MethodGet, c.baseURL+"/api/tags", nil, nil); err != nil {
		return fmt.Errorf("ollama ping: %w", err)
	}
	return nil
}
