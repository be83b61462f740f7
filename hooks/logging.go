package hooks

import (
	"context"
	"log/slog"

	"github.com/mnehpets/onerpc/rpc"
)

// Logging returns a hook that emits one log line per completed call with
// the endpoint, method, origin, outcome, and duration. Failures log at
// warn level with the classified code; decode and dispatch emit debug
// lines. A nil logger uses slog.Default().
func Logging(logger *slog.Logger) *rpc.Hook {
	if logger == nil {
		logger = slog.Default()
	}
	l := &callLogger{logger: logger}
	return &rpc.Hook{
		BeforeDecode:   l.started,
		AfterDecode:    l.decoded,
		BeforeDispatch: l.dispatching,
		AfterSerialize: l.completed,
	}
}

type callLogger struct {
	logger *slog.Logger
	starts startTimes
}

func (l *callLogger) started(ctx context.Context, c *rpc.Call) error {
	l.starts.mark(c)
	return nil
}

func (l *callLogger) decoded(ctx context.Context, c *rpc.Call) error {
	l.logger.Debug("decoded rpc call",
		"endpoint", endpointLabel(c),
		"method", methodLabel(c))
	return nil
}

func (l *callLogger) dispatching(ctx context.Context, c *rpc.Call) error {
	l.logger.Debug("dispatching rpc call",
		"endpoint", endpointLabel(c),
		"method", methodLabel(c))
	return nil
}

func (l *callLogger) completed(ctx context.Context, c *rpc.Call) error {
	attrs := []any{
		"endpoint", endpointLabel(c),
		"method", methodLabel(c),
		"origin", c.RemoteOrigin,
		"duration", l.starts.since(c),
	}
	if c.IsNotification {
		attrs = append(attrs, "notification", true)
	}
	if c.Failed() {
		attrs = append(attrs, "code", c.Outcome.Err.Code, "error", c.Outcome.Err.Message)
		l.logger.Warn("rpc call failed", attrs...)
		return nil
	}
	l.logger.Info("rpc call completed", attrs...)
	return nil
}
