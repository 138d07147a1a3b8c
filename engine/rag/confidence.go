package rag

import "github.com/supportdesk/supportbot/engine/domain"

// NoResultsConfidence is attached to an answer synthesized from the
// no-results template.
const NoResultsConfidence = 0.1

const (
	maxWeight       = 0.6
	meanWeight      = 0.4
	saturationCount = 3.0
	unknownFactor   = 0.7
)

var strategyFactors = map[domain.Strategy]float64{
	domain.StrategyFAQFocus:    0.9,
	domain.StrategyManualFocus: 0.8,
	domain.StrategyBalanced:    0.85,
	domain.StrategyError:       0.3,
}

// ConfidenceBreakdown exposes every factor of a confidence value.
type ConfidenceBreakdown struct {
	Count          int     `json:"count"`
	Max            float64 `json:"max"`
	Mean           float64 `json:"mean"`
	Base           float64 `json:"base"`
	CountFactor    float64 `json:"count_factor"`
	StrategyFactor float64 `json:"strategy_factor"`
	Value          float64 `json:"value"`
}

// StrategyFactor returns the weight applied for strategy.
func StrategyFactor(strategy domain.Strategy) float64 {
	if f, ok := strategyFactors[strategy]; ok {
		return f
	}
	return unknownFactor
}

// Explain computes the confidence of results and the factors behind it.
func Explain(results []domain.SearchResult, strategy domain.Strategy) ConfidenceBreakdown {
	b := ConfidenceBreakdown{Count: len(results), StrategyFactor: StrategyFactor(strategy)}
	if len(results) == 0 {
		return b
	}

	var sum float64
	b.Max = results[0].Score
	for _, r := range results {
		sum += r.Score
		b.Max = max(b.Max, r.Score)
	}
	b.Mean = sum / float64(len(results))
	b.Base = maxWeight*b.Max + meanWeight*b.Mean
	b.CountFactor = min(float64(len(results))/saturationCount, 1)
	b.Value = clamp(b.Base * b.CountFactor * b.StrategyFactor)
	return b
}

// Confidence scores results fused with strategy. Empty results score 0.
func Confidence(results []domain.SearchResult, strategy domain.Strategy) float64 {
	return Explain(results, strategy).Value
}

func clamp(v float64) float64 {
	return max(0, min(1, v))
}
