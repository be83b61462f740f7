// Package hooks supplies ready-made observer hooks for the rpc pipeline:
// structured logging via slog and Prometheus instrumentation. Each
// constructor returns an independent *rpc.Hook to register with
// Dispatcher.AddHook.
//
// Register observability hooks ahead of hooks that may fail, so their
// completion callbacks run before a failing hook aborts the stage.
package hooks

import (
	"strconv"
	"sync"
	"time"

	"github.com/mnehpets/onerpc/rpc"
)

// startTimes records when each in-flight call entered the pipeline, keyed
// by the call itself.
type startTimes struct {
	m sync.Map
}

func (s *startTimes) mark(c *rpc.Call) {
	s.m.Store(c, time.Now())
}

// since returns the elapsed time for c and forgets it. Zero when c was
// never marked.
func (s *startTimes) since(c *rpc.Call) time.Duration {
	v, ok := s.m.LoadAndDelete(c)
	if !ok {
		return 0
	}
	return time.Since(v.(time.Time))
}

// endpointLabel names the call's endpoint, or "unknown" when no endpoint
// resolved.
func endpointLabel(c *rpc.Call) string {
	if c.Endpoint == nil {
		return "unknown"
	}
	return c.Endpoint.Path
}

// methodLabel names the called method, or "unknown" when the envelope
// never decoded.
func methodLabel(c *rpc.Call) string {
	if c.Envelope == nil || c.Envelope.MethodName == "" {
		return "unknown"
	}
	return c.Envelope.MethodName
}

// codeLabel renders the outcome as a label value: "ok" on success, the
// protocol error code otherwise.
func codeLabel(c *rpc.Call) string {
	if c.Failed() {
		return strconv.Itoa(c.Outcome.Err.Code)
	}
	return "ok"
}
