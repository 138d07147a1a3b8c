// Package fusion combines FAQ and manual search results into a single ranked
// list, choosing a strategy from the wording of the query.
package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/supportdesk/supportbot/engine/domain"
	"github.com/supportdesk/supportbot/pkg/fn"
	"github.com/supportdesk/supportbot/pkg/metrics"
)

const (
	focusPerSource = 4
	focusPrimary   = 3
	focusSecondary = 2
	balancedTotal  = 5
)

var tracer = otel.Tracer("engine/fusion")

// Source is one searchable knowledge source.
type Source interface {
	Search(ctx context.Context, query string, maxResults int, minScore float64) domain.Outcome
	Healthy(ctx context.Context) bool
}

// Combined holds per-source results of a SearchAll call.
type Combined struct {
	FAQ          []domain.SearchResult
	Manual       []domain.SearchResult
	FAQStatus    domain.SearchStatus
	ManualStatus domain.SearchStatus
}

// Health reports per-source health. Overall is true when either source works.
type Health struct {
	FAQEngine    bool `json:"faq_engine"`
	ManualEngine bool `json:"manual_engine"`
	Overall      bool `json:"overall"`
}

// Engine dispatches queries to both sources.
type Engine struct {
	faq     Source
	manual  Source
	metrics *metrics.Registry
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records strategy and source outcome counters.
func WithMetrics(m *metrics.Registry) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine over the FAQ and manual sources.
func New(faq, manual Source, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{faq: faq, manual: manual, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// guarded runs one source search, turning a panic into a failed outcome.
func (e *Engine) guarded(ctx context.Context, name string, src Source, query string, perSource int, minScore float64) (out domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("source search panicked", "source", name, "panic", r)
			out = domain.Failed(fmt.Errorf("fusion: %s: panic: %v", name, r))
		}
		e.metrics.ObserveSource(name, string(out.Status))
	}()
	return src.Search(ctx, query, perSource, minScore)
}

// SearchAll queries both sources concurrently. A failing source contributes
// an empty list; SearchAll itself never fails.
func (e *Engine) SearchAll(ctx context.Context, query string, perSource int, minScore float64) Combined {
	ctx, span := tracer.Start(ctx, "fusion.SearchAll")
	defer span.End()

	outs := fn.All(ctx,
		func(ctx context.Context) domain.Outcome {
			return e.guarded(ctx, string(domain.KindFAQ), e.faq, query, perSource, minScore)
		},
		func(ctx context.Context) domain.Outcome {
			return e.guarded(ctx, string(domain.KindManual), e.manual, query, perSource, minScore)
		},
	)
	c := Combined{
		FAQ:          outs[0].Results,
		Manual:       outs[1].Results,
		FAQStatus:    outs[0].Status,
		ManualStatus: outs[1].Status,
	}
	span.SetAttributes(
		attribute.Int("fusion.faq_results", len(c.FAQ)),
		attribute.Int("fusion.manual_results", len(c.Manual)),
		attribute.String("fusion.faq_status", string(c.FAQStatus)),
		attribute.String("fusion.manual_status", string(c.ManualStatus)),
	)
	e.logger.Info("combined search", "faq", len(c.FAQ), "manual", len(c.Manual))
	return c
}

// SearchRanked merges both sources into one list ordered by score, FAQ first
// on ties, truncated to maxTotal.
func (e *Engine) SearchRanked(ctx context.Context, query string, maxTotal int, minScore float64) []domain.SearchResult {
	c := e.SearchAll(ctx, query, maxTotal, minScore)
	return Rank(c.FAQ, c.Manual, maxTotal)
}

// Rank concatenates faq then manual, stable-sorts by score descending and
// keeps at most maxTotal entries.
func Rank(faq, manual []domain.SearchResult, maxTotal int) []domain.SearchResult {
	all := make([]domain.SearchResult, 0, len(faq)+len(manual))
	all = append(all, faq...)
	all = append(all, manual...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if maxTotal >= 0 && len(all) > maxTotal {
		all = all[:maxTotal]
	}
	return all
}

// SmartSearch classifies query and applies the matching strategy. Any internal
// failure yields no results and StrategyError.
func (e *Engine) SmartSearch(ctx context.Context, query string, qctx map[string]any) (results []domain.SearchResult, strategy domain.Strategy) {
	ctx, span := tracer.Start(ctx, "fusion.SmartSearch")
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("smart search failed", "panic", r)
			span.RecordError(fmt.Errorf("panic: %v", r))
			span.SetStatus(codes.Error, "smart search panicked")
			results, strategy = nil, domain.StrategyError
		}
		e.metrics.ObserveStrategy(string(strategy))
		span.SetAttributes(
			attribute.String("fusion.strategy", string(strategy)),
			attribute.Int("fusion.results", len(results)),
		)
		span.End()
	}()

	strategy = Classify(query)
	e.logger.Info("smart search", "strategy", strategy, "context_keys", len(qctx))

	switch strategy {
	case domain.StrategyFAQFocus:
		c := e.SearchAll(ctx, query, focusPerSource, 0)
		results = append(fn.Take(c.FAQ, focusPrimary), fn.Take(c.Manual, focusSecondary)...)
	case domain.StrategyManualFocus:
		c := e.SearchAll(ctx, query, focusPerSource, 0)
		results = append(fn.Take(c.Manual, focusPrimary), fn.Take(c.FAQ, focusSecondary)...)
	default:
		results = e.SearchRanked(ctx, query, balancedTotal, 0)
	}
	return results, strategy
}

// Health probes both sources concurrently.
func (e *Engine) Health(ctx context.Context) Health {
	ctx, span := tracer.Start(ctx, "fusion.Health")
	defer span.End()

	probe := func(src Source) func(context.Context) bool {
		return func(ctx context.Context) (ok bool) {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("health probe panicked", "panic", r)
					ok = false
				}
			}()
			return src.Healthy(ctx)
		}
	}
	res := fn.All(ctx, probe(e.faq), probe(e.manual))
	h := Health{FAQEngine: res[0], ManualEngine: res[1], Overall: res[0] || res[1]}
	span.SetAttributes(attribute.Bool("fusion.healthy", h.Overall))
	return h
}
