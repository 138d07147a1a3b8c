// Package domain defines the core types shared by the search, fusion and answer
// packages, plus the validation gate for incoming questions.
package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// SourceKind discriminates the knowledge source a passage came from.
type SourceKind string

const (
	KindFAQ    SourceKind = "faq"
	KindManual SourceKind = "manual"
)

// Metadata is the source-specific part of a SearchResult. It is a closed set:
// FAQMeta or ManualMeta.
type Metadata interface {
	Kind() SourceKind
	sealed()
}

// FAQMeta describes a hit from the FAQ table.
type FAQMeta struct {
	Question string
	Answer   string
	Distance float64
}

func (FAQMeta) Kind() SourceKind { return KindFAQ }
func (FAQMeta) sealed()          {}

// ManualMeta describes a hit from the manual corpus. Page 0 means unknown.
type ManualMeta struct {
	Title    string
	Page     int
	FilePath string
	Distance float64
}

func (ManualMeta) Kind() SourceKind { return KindManual }
func (ManualMeta) sealed()          {}

// SearchResult is one retrieved passage. Score is a similarity in [0,1].
type SearchResult struct {
	Content  string
	Source   string
	Score    float64
	Metadata Metadata
}

// Kind returns the source kind of the result, or "" when metadata is missing.
func (r SearchResult) Kind() SourceKind {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata.Kind()
}

// Similarity converts an index distance into a similarity score in [0,1].
// A NaN distance scores 0.
func Similarity(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	return max(0, min(1, 1-distance))
}

type resultJSON struct {
	Content  string       `json:"content"`
	Source   string       `json:"source"`
	Score    float64      `json:"score"`
	Metadata metadataJSON `json:"metadata"`
}

type metadataJSON struct {
	Type             SourceKind `json:"type"`
	Question         *string    `json:"question,omitempty"`
	Answer           *string    `json:"answer,omitempty"`
	Title            *string    `json:"title,omitempty"`
	Page             *int       `json:"page,omitempty"`
	FilePath         *string    `json:"file_path,omitempty"`
	OriginalDistance float64    `json:"original_distance"`
}

// MarshalJSON flattens the metadata variant into a mapping with a "type" key.
func (r SearchResult) MarshalJSON() ([]byte, error) {
	out := resultJSON{Content: r.Content, Source: r.Source, Score: r.Score}
	switch m := r.Metadata.(type) {
	case FAQMeta:
		out.Metadata = metadataJSON{Type: KindFAQ, Question: &m.Question, Answer: &m.Answer, OriginalDistance: m.Distance}
	case ManualMeta:
		out.Metadata = metadataJSON{Type: KindManual, Title: &m.Title, Page: &m.Page, FilePath: &m.FilePath, OriginalDistance: m.Distance}
	}
	return json.Marshal(out)
}

// UnmarshalJSON selects the metadata variant from the "type" key.
func (r *SearchResult) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Content, r.Source, r.Score = in.Content, in.Source, in.Score
	m := in.Metadata
	switch m.Type {
	case KindFAQ:
		r.Metadata = FAQMeta{Question: deref(m.Question), Answer: deref(m.Answer), Distance: m.OriginalDistance}
	case KindManual:
		page := 0
		if m.Page != nil {
			page = *m.Page
		}
		r.Metadata = ManualMeta{Title: deref(m.Title), Page: page, FilePath: deref(m.FilePath), Distance: m.OriginalDistance}
	case "":
		r.Metadata = nil
	default:
		return fmt.Errorf("domain: unknown metadata type %q", m.Type)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Strategy is the fusion policy chosen for a query.
type Strategy string

const (
	StrategyFAQFocus    Strategy = "faq_focus"
	StrategyManualFocus Strategy = "manual_focus"
	StrategyBalanced    Strategy = "balanced"
	StrategyError       Strategy = "error"
)

// SearchStatus tells apart a failed search from one that found nothing.
type SearchStatus string

const (
	StatusOK       SearchStatus = "ok"
	StatusEmpty    SearchStatus = "empty"
	StatusRejected SearchStatus = "rejected"
	StatusFailed   SearchStatus = "failed"
)

// Outcome is the result of one source search.
type Outcome struct {
	Results []SearchResult
	Status  SearchStatus
	Err     error
}

// Succeeded builds an ok or empty outcome depending on the result count.
func Succeeded(results []SearchResult) Outcome {
	if len(results) == 0 {
		return Outcome{Status: StatusEmpty}
	}
	return Outcome{Results: results, Status: StatusOK}
}

// Failed builds a failed outcome carrying err.
func Failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}

// Question is an incoming user question.
type Question struct {
	Question string         `json:"question"`
	Context  map[string]any `json:"context,omitempty"`
}

// AnswerResponse is returned for every answered question.
type AnswerResponse struct {
	Answer         string         `json:"answer"`
	Confidence     float64        `json:"confidence"`
	Sources        []SearchResult `json:"sources"`
	Timestamp      time.Time      `json:"timestamp"`
	ProcessingTime float64        `json:"processing_time"`
}
