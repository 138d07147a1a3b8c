package config

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/supportdesk/supportbot/engine/domain"
)

// Bounds for the runtime tunables.
const (
	MinSearchResults = 1
	MaxSearchResults = 20
)

// Tunables are the settings that may change while the process runs.
type Tunables struct {
	MaxSearchResults    int     `json:"max_search_results"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	Model               string  `json:"openai_model"`
}

// Validate checks every field against its allowed range.
func (t Tunables) Validate() error {
	if t.MaxSearchResults < MinSearchResults || t.MaxSearchResults > MaxSearchResults {
		return domain.NewValidationError("max_search_results", fmt.Sprint(t.MaxSearchResults), domain.ErrInvalidSetting)
	}
	if t.SimilarityThreshold < 0 || t.SimilarityThreshold > 1 {
		return domain.NewValidationError("similarity_threshold", fmt.Sprint(t.SimilarityThreshold), domain.ErrInvalidSetting)
	}
	if t.Model == "" {
		return domain.NewValidationError("openai_model", "", domain.ErrInvalidSetting)
	}
	return nil
}

// Patch is a partial update. Nil fields keep their current value.
type Patch struct {
	MaxSearchResults    *int     `json:"max_search_results,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
	Model               *string  `json:"openai_model,omitempty"`
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return p.MaxSearchResults == nil && p.SimilarityThreshold == nil && p.Model == nil
}

func (p Patch) apply(t Tunables) Tunables {
	if p.MaxSearchResults != nil {
		t.MaxSearchResults = *p.MaxSearchResults
	}
	if p.SimilarityThreshold != nil {
		t.SimilarityThreshold = *p.SimilarityThreshold
	}
	if p.Model != nil {
		t.Model = *p.Model
	}
	return t
}

// Store holds the current Tunables. Readers never block; each update swaps in
// a new immutable value, so a request keeps the snapshot it started with.
type Store struct {
	mu  sync.Mutex // serializes writers
	cur atomic.Pointer[Tunables]
}

// NewStore creates a Store holding t.
func NewStore(t Tunables) (*Store, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	s := &Store{}
	s.cur.Store(&t)
	return s, nil
}

// Get returns the current snapshot.
func (s *Store) Get() Tunables { return *s.cur.Load() }

// Update applies p after validating the merged result. On error the current
// value is unchanged.
func (s *Store) Update(p Patch) (Tunables, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := p.apply(*s.cur.Load())
	if err := next.Validate(); err != nil {
		return s.Get(), err
	}
	s.cur.Store(&next)
	return next, nil
}

// SearchDefaults implements search.Defaults.
func (s *Store) SearchDefaults() (int, float64) {
	t := s.cur.Load()
	return t.MaxSearchResults, t.SimilarityThreshold
}

// Model returns the generator model; it fits llm.ModelFunc.
func (s *Store) Model() string { return s.cur.Load().Model }
