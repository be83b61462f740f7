package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mnehpets/onerpc/auth"
	"github.com/mnehpets/onerpc/hooks"
	"github.com/mnehpets/onerpc/httprpc"
	"github.com/mnehpets/onerpc/rpc"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	ep := rpc.NewEndpoint("/rpc")
	ep.Handle("add", func(ctx context.Context, call *rpc.Call, params []json.RawMessage) (any, error) {
		sum := 0.0
		for _, p := range params {
			var n float64
			if err := json.Unmarshal(p, &n); err != nil {
				return nil, rpc.NewInvalidParams("numeric parameters required")
			}
			sum += n
		}
		return sum, nil
	})

	registry := rpc.NewRegistry()
	if err := registry.Register("/rpc", ep); err != nil {
		slog.Error("registering endpoint", "error", err)
		os.Exit(1)
	}

	dispatcher := &rpc.Dispatcher{Auth: auth.AllowAll()}
	dispatcher.AddHook(hooks.Metrics())
	dispatcher.AddHook(hooks.Logging(logger))

	mux := http.NewServeMux()
	mux.Handle("/rpc", httprpc.NewHandler(registry, dispatcher))
	mux.Handle("/metrics", promhttp.Handler())

	slog.Info("server starting", "addr", ":8080", "metrics", "/metrics")
	if err := http.ListenAndServe(":8080", mux); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
