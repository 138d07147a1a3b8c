// Package search implements the FAQ and manual source adapters over a shared
// vector index. Both sources live in one collection and are told apart by the
// payload "type" key.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/supportdesk/supportbot/engine/domain"
	"github.com/supportdesk/supportbot/engine/semantic"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Index answers nearest-neighbour queries and filtered counts.
type Index interface {
	Query(ctx context.Context, vector []float32, k int, filter map[string]string) (semantic.QueryResult, error)
	Count(ctx context.Context, filter map[string]string) (int, error)
}

// Defaults supplies the process-wide search tunables.
type Defaults interface {
	SearchDefaults() (maxResults int, minScore float64)
}

// StaticDefaults is a fixed Defaults.
type StaticDefaults struct {
	MaxResults int
	MinScore   float64
}

func (d StaticDefaults) SearchDefaults() (int, float64) { return d.MaxResults, d.MinScore }

const healthProbe = "テスト"

type builder func(doc string, meta map[string]any, distance, score float64) domain.SearchResult

// adapter holds the behaviour shared by the two sources.
type adapter struct {
	kind     domain.SourceKind
	embedder Embedder
	index    Index
	defaults Defaults
	build    builder
	logger   *slog.Logger
}

func newAdapter(kind domain.SourceKind, e Embedder, idx Index, d Defaults, b builder, logger *slog.Logger) adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if d == nil {
		d = StaticDefaults{MaxResults: 5, MinScore: 0.7}
	}
	return adapter{kind: kind, embedder: e, index: idx, defaults: d, build: b, logger: logger.With("source", string(kind))}
}

func (a adapter) filter() map[string]string { return map[string]string{"type": string(a.kind)} }

// resolve replaces unset (zero or negative) arguments with the current defaults.
func (a adapter) resolve(maxResults int, minScore float64) (int, float64) {
	defMax, defMin := a.defaults.SearchDefaults()
	if maxResults <= 0 {
		maxResults = defMax
	}
	if minScore <= 0 {
		minScore = defMin
	}
	return maxResults, minScore
}

func (a adapter) search(ctx context.Context, query string, maxResults int, minScore float64) domain.Outcome {
	if strings.TrimSpace(query) == "" {
		a.logger.Warn("empty search query")
		return domain.Outcome{Status: domain.StatusRejected}
	}
	maxResults, minScore = a.resolve(maxResults, minScore)
	a.logger.Info("searching", "query", query, "max_results", maxResults, "min_score", minScore)

	out := a.run(ctx, query, maxResults, minScore)
	if out.Status != domain.StatusFailed {
		a.logger.Info("search complete", "results", len(out.Results))
	}
	return out
}

// run embeds query, queries the index and converts hits, without resolving
// defaults. Any error or panic yields a failed outcome.
func (a adapter) run(ctx context.Context, query string, k int, minScore float64) (out domain.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("search panicked", "panic", r)
			out = domain.Failed(fmt.Errorf("search: %s: panic: %v", a.kind, r))
		}
	}()

	vec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		a.logger.Error("embed query failed", "err", err)
		return domain.Failed(fmt.Errorf("search: %s: embed query: %w", a.kind, err))
	}
	raw, err := a.index.Query(ctx, vec, k, a.filter())
	if err != nil {
		a.logger.Error("index query failed", "err", err)
		return domain.Failed(fmt.Errorf("search: %s: query index: %w", a.kind, err))
	}
	return domain.Succeeded(a.convert(raw, minScore))
}

func (a adapter) convert(raw semantic.QueryResult, minScore float64) []domain.SearchResult {
	n := min(len(raw.Documents), len(raw.Metadatas), len(raw.Distances))
	results := make([]domain.SearchResult, 0, n)
	for i := 0; i < n; i++ {
		score := domain.Similarity(raw.Distances[i])
		if score < minScore {
			continue
		}
		results = append(results, a.build(raw.Documents[i], raw.Metadatas[i], raw.Distances[i], score))
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

func (a adapter) healthy(ctx context.Context) bool {
	n, err := a.index.Count(ctx, a.filter())
	if err != nil {
		a.logger.Error("health check failed", "err", err)
		return false
	}
	if n == 0 {
		a.logger.Warn("no documents stored")
		return false
	}
	if out := a.search(ctx, healthProbe, 1, 0); out.Status == domain.StatusFailed {
		return false
	}
	a.logger.Info("search engine healthy", "documents", n)
	return true
}

func metaString(meta map[string]any, key string) (string, bool) {
	v, ok := meta[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	default:
		return fmt.Sprint(s), true
	}
}

func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
