package main

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/supportdesk/supportbot/engine/domain"
	"github.com/supportdesk/supportbot/engine/rag"
	"github.com/supportdesk/supportbot/pkg/natsutil"
)

// natsEvents publishes answer events on a NATS subject.
type natsEvents struct {
	nc      *nats.Conn
	subject string
}

func (p natsEvents) PublishAnswer(ctx context.Context, ev rag.AnswerEvent) error {
	return natsutil.Publish(ctx, p.nc, p.subject, ev)
}

// askResponder answers questions arriving over NATS request/reply.
func askResponder(svc answerer) func(context.Context, domain.Question) (*domain.AnswerResponse, error) {
	return func(ctx context.Context, q domain.Question) (*domain.AnswerResponse, error) {
		return svc.Answer(ctx, q)
	}
}
