package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/supportdesk/supportbot/engine/domain"
)

const sampleProbe = "サンプル"

// FAQSearcher searches question/answer rows.
type FAQSearcher struct {
	adapter
}

// NewFAQSearcher creates the FAQ source adapter.
func NewFAQSearcher(e Embedder, idx Index, d Defaults, logger *slog.Logger) *FAQSearcher {
	return &FAQSearcher{adapter: newAdapter(domain.KindFAQ, e, idx, d, buildFAQ, logger)}
}

func buildFAQ(_ string, meta map[string]any, distance, score float64) domain.SearchResult {
	q, hasQuestion := metaString(meta, "question")
	ans, _ := metaString(meta, "answer")
	label := q
	if !hasQuestion {
		label = "Unknown"
	}
	return domain.SearchResult{
		Content:  "質問: " + q + "\n回答: " + ans,
		Source:   "FAQ: " + label,
		Score:    score,
		Metadata: domain.FAQMeta{Question: q, Answer: ans, Distance: distance},
	}
}

// Search returns FAQ rows similar to query. maxResults and minScore fall back to
// the defaults when zero.
func (f *FAQSearcher) Search(ctx context.Context, query string, maxResults int, minScore float64) domain.Outcome {
	return f.search(ctx, query, maxResults, minScore)
}

// SearchByKeywords joins keywords with a space and searches.
func (f *FAQSearcher) SearchByKeywords(ctx context.Context, keywords []string, maxResults int) domain.Outcome {
	f.logger.Info("keyword search", "keywords", keywords)
	return f.search(ctx, strings.Join(keywords, " "), maxResults, 0)
}

// Sample returns up to count FAQ rows for display, with no score threshold.
func (f *FAQSearcher) Sample(ctx context.Context, count int) domain.Outcome {
	if count <= 0 {
		count = 5
	}
	f.logger.Info("sampling faqs", "count", count)
	return f.run(ctx, sampleProbe, count, 0)
}

// Healthy reports whether FAQ rows exist and a probe search succeeds.
func (f *FAQSearcher) Healthy(ctx context.Context) bool {
	return f.healthy(ctx)
}
