// Package natsutil provides typed NATS publish/subscribe/request helpers
// with OpenTelemetry trace propagation.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// ErrorHeader carries a responder's error message. A reply with this header
// set has no body.
const ErrorHeader = "Nats-Service-Error"

// DefaultRequestTimeout bounds Request when ctx has no deadline.
const DefaultRequestTimeout = nats.DefaultTimeout

// RemoteError is returned by Request when the responder reported an error.
type RemoteError struct {
	Subject string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("natsutil: %s: remote error: %s", e.Subject, e.Message)
}

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

func newMsg[T any](ctx context.Context, subject string, v T) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("natsutil: marshal %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return msg, nil
}

func extract(msg *nats.Msg) context.Context {
	return otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
}

// Publish serializes v as JSON and publishes to the given subject.
// Trace context from ctx is injected into NATS message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	msg, err := newMsg(ctx, subject, v)
	if err != nil {
		return err
	}
	return nc.PublishMsg(msg)
}

// Subscribe registers a handler that deserializes JSON messages of type T.
// Trace context is extracted from NATS message headers and passed to the handler.
// Malformed messages are silently dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return // drop malformed messages
		}
		handler(extract(msg), v)
	})
}

// Respond serves request/reply on subject. Subscribers sharing a non-empty
// queue split the load. A malformed request or a handler error is answered
// with ErrorHeader instead of a body.
func Respond[Req, Resp any](nc *nats.Conn, subject, queue string, handler func(context.Context, Req) (Resp, error)) (*nats.Subscription, error) {
	return nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		if msg.Reply == "" {
			return
		}
		var req Req
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			respondError(msg, fmt.Errorf("malformed request: %w", err))
			return
		}
		resp, err := handler(extract(msg), req)
		if err != nil {
			respondError(msg, err)
			return
		}
		data, err := json.Marshal(resp)
		if err != nil {
			respondError(msg, err)
			return
		}
		msg.Respond(data)
	})
}

func respondError(msg *nats.Msg, err error) {
	reply := nats.NewMsg(msg.Reply)
	reply.Header.Set(ErrorHeader, err.Error())
	msg.RespondMsg(reply)
}

// Request sends a JSON-encoded request and decodes the response. Without a
// deadline on ctx it waits at most DefaultRequestTimeout.
func Request[Req, Resp any](ctx context.Context, nc *nats.Conn, subject string, req Req) (Resp, error) {
	var zero Resp
	msg, err := newMsg(ctx, subject, req)
	if err != nil {
		return zero, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRequestTimeout)
		defer cancel()
	}
	resp, err := nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return zero, fmt.Errorf("natsutil: %s: %w", subject, nats.ErrTimeout)
		}
		return zero, fmt.Errorf("natsutil: %s: %w", subject, err)
	}
	if e := resp.Header.Get(ErrorHeader); e != "" {
		return zero, &RemoteError{Subject: subject, Message: e}
	}
	var result Resp
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return zero, fmt.Errorf("natsutil: decode %s reply: %w", subject, err)
	}
	return result, nil
}

// Connect dials url with reconnects enabled and a client name.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("natsutil: connect %s: %w", url, err)
	}
	return nc, nil
}
