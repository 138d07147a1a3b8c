// Package llm defines the text generation request shared by the generator
// clients and implements the hosted OpenAI backend.
package llm

import "context"

// Request is one system + user prompt exchange.
type Request struct {
	System      string
	User        string
	Temperature float64
	// MaxTokens caps the completion length; 0 leaves it to the backend.
	MaxTokens int
}

// Generator produces text for a Request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Ping(ctx context.Context) error
}

// ModelFunc returns the model to use for the next call. An empty result
// selects the client's fallback model.
type ModelFunc func() string

func (f ModelFunc) resolve(fallback string) string {
	if f != nil {
		if m := f(); m != "" {
			return m
		}
	}
	return fallback
}

// Resolve returns the model for the next call, or fallback.
func (f ModelFunc) Resolve(fallback string) string { return f.resolve(fallback) }
