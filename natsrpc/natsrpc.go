// Package natsrpc binds the rpc pipeline to NATS request-reply.
//
// A Server subscribes one subject per registered endpoint path. Each
// message's data is the raw protocol envelope; the serialized response is
// published to the message's reply subject. A notification never
// publishes a reply, whether or not the message carries a reply subject.
package natsrpc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mnehpets/onerpc/rpc"
)

const (
	// DefaultSubjectPrefix roots the subject space for endpoint paths.
	DefaultSubjectPrefix = "rpc"

	// DefaultRequestTimeout bounds one pipeline run driven by a message.
	DefaultRequestTimeout = 10 * time.Second
)

// SubjectFor maps an endpoint path onto a subject under prefix: slashes
// become subject tokens, so prefix "rpc" and path "/calc" yield
// "rpc.calc".
func SubjectFor(prefix, path string) string {
	p := strings.Trim(path, "/")
	p = strings.ReplaceAll(p, "/", ".")
	if p == "" {
		return prefix
	}
	return prefix + "." + p
}

// Option configures a Server.
type Option func(*Server)

// WithSubjectPrefix overrides DefaultSubjectPrefix.
func WithSubjectPrefix(prefix string) Option {
	return func(s *Server) {
		s.prefix = prefix
	}
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// Server serves rpc calls over a NATS connection.
type Server struct {
	nc         *nats.Conn
	registry   *rpc.Registry
	dispatcher *rpc.Dispatcher
	prefix     string
	timeout    time.Duration
	subs       []*nats.Subscription
}

// NewServer builds a Server for every endpoint registered in registry.
// The connection is borrowed, not owned: Close drains the server's
// subscriptions but leaves the connection open.
func NewServer(nc *nats.Conn, registry *rpc.Registry, dispatcher *rpc.Dispatcher, opts ...Option) *Server {
	s := &Server{
		nc:         nc,
		registry:   registry,
		dispatcher: dispatcher,
		prefix:     DefaultSubjectPrefix,
		timeout:    DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes one subject per registered endpoint path. On failure
// every subscription already made is torn down.
func (s *Server) Start() error {
	for _, path := range s.registry.Paths() {
		ep, ok := s.registry.Lookup(path)
		if !ok {
			continue
		}
		subject := SubjectFor(s.prefix, path)
		sub, err := s.nc.Subscribe(subject, s.handle(ep))
		if err != nil {
			s.Close()
			return fmt.Errorf("subscribing to %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
		slog.Info("natsrpc subscribed", "subject", subject, "path", path)
	}
	return nil
}

func (s *Server) handle(ep *rpc.Endpoint) nats.MsgHandler {
	return func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		c := rpc.NewCall(msg.Data, http.Header(msg.Header), msg.Subject, ep)
		s.dispatcher.Process(ctx, c)

		if c.IsNotification {
			return
		}
		if msg.Reply == "" {
			slog.Debug("natsrpc dropping response without reply subject", "subject", msg.Subject)
			return
		}
		if err := msg.Respond(c.SerializedResponse); err != nil {
			slog.Error("natsrpc respond failed", "subject", msg.Subject, "error", err)
		}
	}
}

// Close drains the server's subscriptions, letting in-flight handlers
// finish before unsubscribing.
func (s *Server) Close() error {
	var firstErr error
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.subs = nil
	return firstErr
}
