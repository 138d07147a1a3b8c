// Package app assembles the answer pipeline from configuration: the Qdrant
// index, the Ollama embedder, both source searchers, the fusion engine, the
// text generator and the rag service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/supportdesk/supportbot/engine/fusion"
	"github.com/supportdesk/supportbot/engine/rag"
	"github.com/supportdesk/supportbot/engine/search"
	"github.com/supportdesk/supportbot/engine/semantic"
	"github.com/supportdesk/supportbot/pkg/config"
	"github.com/supportdesk/supportbot/pkg/fn"
	"github.com/supportdesk/supportbot/pkg/llm"
	"github.com/supportdesk/supportbot/pkg/metrics"
	"github.com/supportdesk/supportbot/pkg/ollama"
)

// StartupRetry bounds how long Build waits for the index to answer.
var StartupRetry = fn.RetryOpts{
	MaxAttempts: 5,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     5 * time.Second,
	Jitter:      true,
}

// Stack is the assembled pipeline. Every handle is created once and shared.
type Stack struct {
	Index     *semantic.VectorStore
	Embedder  search.Embedder
	FAQ       *search.FAQSearcher
	Manual    *search.ManualSearcher
	Fusion    *fusion.Engine
	Generator rag.Generator
	Service   *rag.Service
}

// Close releases the index connection.
func (s *Stack) Close() error {
	if s == nil || s.Index == nil {
		return nil
	}
	return s.Index.Close()
}

// Build dials the index, checks that the collection exists, and wires the
// full pipeline. Any error is an initialization failure.
func Build(ctx context.Context, cfg *config.Config, store *config.Store, reg *metrics.Registry, logger *slog.Logger, opts ...rag.Option) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}
	gen, err := NewGenerator(cfg, store)
	if err != nil {
		return nil, err
	}
	st, err := BuildSearch(ctx, cfg, store, reg, logger)
	if err != nil {
		return nil, err
	}
	st.AttachService(cfg, gen, reg, logger, opts...)
	logger.Info("pipeline ready",
		"collection", st.Index.Collection(),
		"generator", cfg.Generator.Provider,
		"embed_model", cfg.Ollama.EmbedModel,
	)
	return st, nil
}

// BuildSearch wires retrieval only: index, embedder, both searchers and the
// fusion engine.
func BuildSearch(ctx context.Context, cfg *config.Config, store *config.Store, reg *metrics.Registry, logger *slog.Logger) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}
	embedder, err := NewEmbedder(cfg.Ollama)
	if err != nil {
		return nil, err
	}

	index, err := semantic.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
	if err != nil {
		return nil, fmt.Errorf("app: qdrant connect: %w", err)
	}
	if err := WaitForIndex(ctx, index, logger); err != nil {
		index.Close()
		return nil, err
	}

	faq := search.NewFAQSearcher(embedder, index, store, logger)
	manual := search.NewManualSearcher(embedder, index, store, logger)
	return &Stack{
		Index:    index,
		Embedder: embedder,
		FAQ:      faq,
		Manual:   manual,
		Fusion:   fusion.New(faq, manual, logger, fusion.WithMetrics(reg)),
	}, nil
}

// AttachService puts the answer service on top of the retrieval stack.
func (s *Stack) AttachService(cfg *config.Config, gen rag.Generator, reg *metrics.Registry, logger *slog.Logger, opts ...rag.Option) {
	ragOpts := rag.DefaultOptions()
	ragOpts.Temperature = cfg.Generator.Temperature
	ragOpts.MaxTokens = cfg.Generator.MaxTokens
	ragOpts.GenerateTimeout = cfg.Generator.Timeout
	if cfg.RAG.BatchWorkers > 0 {
		ragOpts.BatchWorkers = cfg.RAG.BatchWorkers
	}
	s.Generator = gen
	s.Service = rag.New(s.Fusion, gen, ragOpts, logger, append([]rag.Option{rag.WithMetrics(reg)}, opts...)...)
}

// Checker reports whether the collection exists.
type Checker interface {
	Exists(ctx context.Context) (bool, error)
	Collection() string
}

// WaitForIndex retries the existence check with StartupRetry. A missing
// collection fails immediately.
func WaitForIndex(ctx context.Context, idx Checker, logger *slog.Logger) error {
	opts := StartupRetry
	opts.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("index not reachable, retrying", "attempt", attempt, "wait", wait, "err", err)
	}
	exists, err := fn.Retry(ctx, opts, idx.Exists)
	if err != nil {
		return fmt.Errorf("app: check collection %q: %w", idx.Collection(), err)
	}
	if !exists {
		return fmt.Errorf("app: collection %q does not exist", idx.Collection())
	}
	return nil
}

// NewGenerator builds the configured text generator. The OpenAI client reads
// its model from store on every call.
func NewGenerator(cfg *config.Config, store *config.Store) (rag.Generator, error) {
	switch cfg.Generator.Provider {
	case "openai":
		g, err := llm.NewOpenAI(cfg.Generator.APIKey, store.Model)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		return g, nil
	case "ollama":
		return ollama.NewChatClient(cfg.Ollama.URL, cfg.Ollama.ChatModel, nil), nil
	default:
		return nil, fmt.Errorf("app: unknown generator provider %q", cfg.Generator.Provider)
	}
}

// NewEmbedder returns the Ollama embedder, behind an LRU cache when
// EmbedCacheSize is positive.
func NewEmbedder(cfg config.OllamaConfig) (search.Embedder, error) {
	client := ollama.NewEmbedClient(cfg.URL, cfg.EmbedModel)
	if cfg.EmbedCacheSize <= 0 {
		return client, nil
	}
	cached, err := search.NewCachedEmbedder(client, cfg.EmbedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return cached, nil
}
