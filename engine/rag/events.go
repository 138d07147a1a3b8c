package rag

import (
	"context"
	"log/slog"
	"time"

	"github.com/supportdesk/supportbot/engine/domain"
)

// AnswerEvent summarizes one answered question for downstream consumers.
type AnswerEvent struct {
	ID             string          `json:"id"`
	Question       string          `json:"question"`
	Strategy       domain.Strategy `json:"strategy"`
	Outcome        string          `json:"outcome"`
	Confidence     float64         `json:"confidence"`
	Sources        int             `json:"sources"`
	ProcessingTime float64         `json:"processing_time"`
	Timestamp      time.Time       `json:"timestamp"`
}

// EventPublisher receives answer events. Publishing failures never affect the
// answer returned to the caller.
type EventPublisher interface {
	PublishAnswer(ctx context.Context, ev AnswerEvent) error
}

func (s *Service) publish(ctx context.Context, log *slog.Logger, ev AnswerEvent) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishAnswer(ctx, ev)
	if err != nil {
		log.Warn("publish answer event failed", "err", err)
	}
	s.metrics.ObserveEvent(err)
}
