// Package rag orchestrates question answering: it runs the fused search,
// picks a prompt template from the sources found, calls the text generator
// behind a circuit breaker and scores the answer.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/supportdesk/supportbot/engine/domain"
	"github.com/supportdesk/supportbot/engine/fusion"
	"github.com/supportdesk/supportbot/pkg/llm"
	"github.com/supportdesk/supportbot/pkg/metrics"
	"github.com/supportdesk/supportbot/pkg/resilience"
)

// Fixed answers used when generation or the pipeline itself fails.
const (
	GenerationErrorAnswer = "回答の生成中にエラーが発生しました。"
	SystemErrorAnswer     = "申し訳ございませんが、システムエラーが発生しました。しばらく待ってから再度お試しください。"
)

// Outcome labels for metrics and events.
const (
	OutcomeAnswered          = "answered"
	OutcomeGenerationFailed  = "generation_failed"
	OutcomeNoResults         = "no_results"
	OutcomeNoResultsFallback = "no_results_fallback"
	OutcomeSystemError       = "system_error"
)

// Phase is a step of the per-request state machine.
type Phase string

const (
	PhaseReceived Phase = "received"
	PhaseSearched Phase = "searched"
	PhaseAnswered Phase = "answered"
	PhaseReturned Phase = "returned"
	PhaseErrored  Phase = "errored"
)

var tracer = otel.Tracer("engine/rag")

// Searcher is the fused retrieval the service depends on.
type Searcher interface {
	SmartSearch(ctx context.Context, query string, qctx map[string]any) ([]domain.SearchResult, domain.Strategy)
	Health(ctx context.Context) fusion.Health
}

// Generator produces answer text.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
	Ping(ctx context.Context) error
}

// Options configures the answer pipeline.
type Options struct {
	Temperature        float64
	MaxTokens          int
	NoResultsMaxTokens int
	GenerateTimeout    time.Duration
	BatchWorkers       int
	Breaker            resilience.BreakerOpts
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		Temperature:        0.3,
		MaxTokens:          800,
		NoResultsMaxTokens: 400,
		GenerateTimeout:    60 * time.Second,
		BatchWorkers:       4,
		Breaker:            resilience.DefaultBreakerOpts,
	}
}

// Service answers questions. It holds no per-request state.
type Service struct {
	searcher  Searcher
	generator Generator
	breaker   *resilience.Breaker
	opts      Options
	publisher EventPublisher
	metrics   *metrics.Registry
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher hands every answer event to p.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics records answer outcomes in m.
func WithMetrics(m *metrics.Registry) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a Service.
func New(searcher Searcher, generator Generator, opts Options, logger *slog.Logger, setters ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BatchWorkers <= 0 {
		opts.BatchWorkers = 1
	}
	bopts := opts.Breaker
	bopts.CallTimeout = opts.GenerateTimeout
	bopts.OnStateChange = func(from, to resilience.State) {
		logger.Warn("generator breaker state change", "from", from.String(), "to", to.String())
	}
	s := &Service{
		searcher:  searcher,
		generator: generator,
		breaker:   resilience.NewBreaker(bopts),
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
	for _, set := range setters {
		set(s)
	}
	return s
}

// Answer runs one question through the pipeline. The only error returned is a
// *domain.ValidationError; every later failure degrades into the response.
func (s *Service) Answer(ctx context.Context, q domain.Question) (*domain.AnswerResponse, error) {
	start := s.now()
	id := uuid.NewString()
	log := s.logger.With("request_id", id)
	log.Debug("phase", "phase", PhaseReceived)

	if err := domain.ValidateQuestion(q.Question); err != nil {
		log.Warn("question rejected", "err", err)
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "rag.Answer")
	defer span.End()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		log = log.With("trace_id", sc.TraceID().String())
	}

	log.Info("processing question", "question", q.Question)
	resp, strategy, outcome := s.process(ctx, log, q, start)
	span.SetAttributes(
		attribute.String("rag.strategy", string(strategy)),
		attribute.String("rag.outcome", outcome),
		attribute.Float64("rag.confidence", resp.Confidence),
	)
	log.Debug("phase", "phase", PhaseReturned)
	log.Info("question processed",
		"outcome", outcome,
		"strategy", strategy,
		"confidence", resp.Confidence,
		"processing_time", resp.ProcessingTime,
	)

	s.metrics.ObserveAnswer(outcome, resp.Confidence, time.Duration(resp.ProcessingTime*float64(time.Second)))
	s.publish(ctx, log, AnswerEvent{
		ID:             id,
		Question:       q.Question,
		Strategy:       strategy,
		Outcome:        outcome,
		Confidence:     resp.Confidence,
		Sources:        len(resp.Sources),
		ProcessingTime: resp.ProcessingTime,
		Timestamp:      resp.Timestamp,
	})
	return resp, nil
}

func (s *Service) process(ctx context.Context, log *slog.Logger, q domain.Question, start time.Time) (resp *domain.AnswerResponse, strategy domain.Strategy, outcome string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("question processing failed", "phase", PhaseErrored, "panic", r)
			resp = s.respond(SystemErrorAnswer, 0, nil, start)
			strategy, outcome = domain.StrategyError, OutcomeSystemError
		}
	}()

	results, strategy := s.searcher.SmartSearch(ctx, q.Question, q.Context)
	log.Debug("phase", "phase", PhaseSearched, "results", len(results), "strategy", strategy)
	for i, r := range results[:min(3, len(results))] {
		log.Debug("search hit", "rank", i+1, "source", r.Source, "score", r.Score)
	}

	var (
		answer     string
		confidence float64
	)
	if len(results) > 0 {
		answer, confidence, outcome = s.answerWithSources(ctx, log, q.Question, results, strategy)
	} else {
		answer, confidence, outcome = s.answerWithoutSources(ctx, log, q.Question)
	}
	log.Debug("phase", "phase", PhaseAnswered, "outcome", outcome)
	return s.respond(answer, confidence, results, start), strategy, outcome
}

func (s *Service) answerWithSources(ctx context.Context, log *slog.Logger, question string, results []domain.SearchResult, strategy domain.Strategy) (string, float64, string) {
	tmpl, prompt := BuildPrompt(question, results)
	answer, err := s.generate(ctx, prompt, s.opts.MaxTokens)
	if err != nil {
		log.Error("answer generation failed", "template", tmpl, "err", err)
		return GenerationErrorAnswer, 0, OutcomeGenerationFailed
	}
	b := Explain(results, strategy)
	log.Info("answer generated",
		"template", tmpl,
		"answer_len", len([]rune(answer)),
		"confidence", b.Value,
		"confidence_max", b.Max,
		"confidence_mean", b.Mean,
		"count_factor", b.CountFactor,
		"strategy_factor", b.StrategyFactor,
	)
	return answer, b.Value, OutcomeAnswered
}

func (s *Service) answerWithoutSources(ctx context.Context, log *slog.Logger, question string) (string, float64, string) {
	prompt := NoResultsPrompt(question)
	answer, err := s.generate(ctx, prompt, s.opts.NoResultsMaxTokens)
	if err != nil {
		log.Error("no-results answer generation failed", "err", err)
		return prompt, 0, OutcomeNoResultsFallback
	}
	log.Info("no-results answer generated")
	return answer, NoResultsConfidence, OutcomeNoResults
}

func (s *Service) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return resilience.Execute(s.breaker, ctx, func(ctx context.Context) (string, error) {
		out, err := s.generator.Generate(ctx, llm.Request{
			System:      SystemRole,
			User:        prompt,
			Temperature: s.opts.Temperature,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("rag: generate: %w", err)
		}
		return strings.TrimSpace(out), nil
	})
}

func (s *Service) respond(answer string, confidence float64, sources []domain.SearchResult, start time.Time) *domain.AnswerResponse {
	if sources == nil {
		sources = []domain.SearchResult{}
	}
	now := s.now()
	return &domain.AnswerResponse{
		Answer:         answer,
		Confidence:     confidence,
		Sources:        sources,
		Timestamp:      now,
		ProcessingTime: now.Sub(start).Seconds(),
	}
}

// AnswerBatch validates every question first, then answers them concurrently.
// Responses are in input order.
func (s *Service) AnswerBatch(ctx context.Context, questions []string) ([]domain.AnswerResponse, error) {
	if err := domain.ValidateBatch(questions); err != nil {
		return nil, err
	}
	s.logger.Info("batch started", "questions", len(questions))

	out := make([]domain.AnswerResponse, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BatchWorkers)
	for i, q := range questions {
		g.Go(func() error {
			resp, err := s.Answer(gctx, domain.Question{Question: q})
			if err != nil {
				return fmt.Errorf("rag: batch item %d: %w", i, err)
			}
			out[i] = *resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.logger.Info("batch finished", "answers", len(out))
	return out, nil
}

// SystemStatus describes the health of the service's collaborators.
type SystemStatus struct {
	AgentStatus        string        `json:"agent_status"`
	GeneratorReachable bool          `json:"openai_connection"`
	GeneratorBreaker   string        `json:"generator_breaker"`
	Search             fusion.Health `json:"search_engine_status"`
	Timestamp          time.Time     `json:"timestamp"`
}

// Status probes the generator and both search sources.
func (s *Service) Status(ctx context.Context) SystemStatus {
	st := SystemStatus{AgentStatus: "healthy", Timestamp: s.now()}

	if err := s.generator.Ping(ctx); err != nil {
		s.logger.Warn("generator unreachable", "err", err)
		st.AgentStatus = "degraded"
	} else {
		st.GeneratorReachable = true
	}
	st.GeneratorBreaker = s.breaker.State().String()

	st.Search = s.searcher.Health(ctx)
	if !st.Search.Overall {
		st.AgentStatus = "degraded"
	}
	return st
}
