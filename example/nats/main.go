package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/mnehpets/onerpc/auth"
	"github.com/mnehpets/onerpc/natsrpc"
	"github.com/mnehpets/onerpc/rpc"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := nats.Connect(url, nats.Name("onerpc-example"))
	if err != nil {
		return err
	}
	defer nc.Drain()

	ep := rpc.NewEndpoint("/calc")
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
	if err := registry.Register("/calc", ep); err != nil {
		return err
	}

	server := natsrpc.NewServer(nc, registry, &rpc.Dispatcher{Auth: auth.AllowAll()})
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Close()

	slog.Info("serving calls", "url", url, "subject", "rpc.calc")
	slog.Info(`try: nats request rpc.calc '{"id": 1, "methodName": "add", "params": [2, 3]}'`)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig.String())
	return nil
}
