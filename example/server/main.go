// Command server runs a config-driven RPC server: HTTP transport, optional
// NATS transport, a configured authenticator, and logging, metrics, and
// audit hooks.
//
// Configuration is layered from defaults, an optional .env file, a YAML
// config file (-config flag, ONERPC_CONFIG, ./onerpc.yaml), and ONERPC_*
// environment variables.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mnehpets/onerpc/auth"
	"github.com/mnehpets/onerpc/config"
	"github.com/mnehpets/onerpc/hooks"
	"github.com/mnehpets/onerpc/hooks/audit"
	"github.com/mnehpets/onerpc/httprpc"
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
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ep := rpc.NewEndpoint(cfg.Path)
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
	ep.Handle("echo", func(ctx context.Context, call *rpc.Call, params []json.RawMessage) (any, error) {
		out := make([]any, 0, len(params))
		for _, p := range params {
			var v any
			if err := json.Unmarshal(p, &v); err != nil {
				return nil, rpc.NewInvalidParams("malformed parameter")
			}
			out = append(out, v)
		}
		return out, nil
	})
	ep.HandleIntrospection()

	registry := rpc.NewRegistry()
	if err := registry.Register(cfg.Path, ep); err != nil {
		return err
	}

	authn, err := newAuthenticator(ctx, cfg)
	if err != nil {
		return err
	}

	dispatcher := &rpc.Dispatcher{Auth: authn}
	dispatcher.AddHook(hooks.Metrics())
	dispatcher.AddHook(hooks.Logging(logger))

	if cfg.Audit.DSN != "" {
		recorder, err := audit.New(ctx, cfg.Audit.DSN)
		if err != nil {
			return fmt.Errorf("starting audit recorder: %w", err)
		}
		defer recorder.Close()
		dispatcher.AddHook(recorder.Hook())
		slog.Info("audit enabled")
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, httprpc.NewHandler(registry, dispatcher))
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	srv := &http.Server{Addr: cfg.Listen, Handler: mux}

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("onerpc-server"))
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer nc.Drain()

		ns := natsrpc.NewServer(nc, registry, dispatcher,
			natsrpc.WithSubjectPrefix(cfg.NATS.SubjectPrefix))
		if err := ns.Start(); err != nil {
			return fmt.Errorf("starting NATS transport: %w", err)
		}
		defer ns.Close()
		slog.Info("nats transport enabled", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Listen, "path", cfg.Path, "auth", cfg.Auth.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// newAuthenticator builds the authenticator selected by the auth mode.
func newAuthenticator(ctx context.Context, cfg *config.Config) (rpc.Authenticator, error) {
	a := cfg.Auth
	switch a.Mode {
	case "none":
		return auth.AllowAll(), nil
	case "apikey":
		keys := make([]auth.Key, 0, len(a.Keys))
		for _, k := range a.Keys {
			keys = append(keys, auth.Key{Secret: k.Secret, Subject: k.Subject, Methods: k.Methods})
		}
		return auth.NewKeyring(keys...), nil
	case "jwt":
		return auth.NewJWT(auth.JWTConfig{
			Secret:     []byte(a.JWTSecret),
			JWKSURL:    a.JWKSURL,
			Issuer:     a.Issuer,
			Audience:   a.Audience,
			ScopeClaim: a.ScopeClaim,
		})
	case "oidc":
		return auth.NewOIDC(ctx, a.Issuer, a.ClientID)
	case "ticket":
		keys, err := a.DecodeTicketKeys()
		if err != nil {
			return nil, err
		}
		return auth.NewTicketCodec(a.TicketKey, keys)
	}
	return nil, fmt.Errorf("unknown auth mode %q", a.Mode)
}
