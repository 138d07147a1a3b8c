// Package main implements the support bot API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/supportdesk/supportbot/engine/app"
	"github.com/supportdesk/supportbot/engine/rag"
	"github.com/supportdesk/supportbot/pkg/config"
	"github.com/supportdesk/supportbot/pkg/logging"
	"github.com/supportdesk/supportbot/pkg/metrics"
	"github.com/supportdesk/supportbot/pkg/mid"
	"github.com/supportdesk/supportbot/pkg/natsutil"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", os.Getenv("SUPPORTBOT_CONFIG"), "path to a YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	flag.Parse()

	if err := config.LoadDotenv(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, closer, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	if err := run(cfg, loader, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		closer.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, loader *config.Loader, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	store, err := config.NewStore(cfg.Tunables())
	if err != nil {
		return err
	}
	loader.Watch(store, logger, reg.ObserveConfigUpdate)

	// --- Connect to NATS (optional) ---
	var (
		nc      *nats.Conn
		ragOpts []rag.Option
	)
	if cfg.NATS.URL != "" {
		nc, err = natsutil.Connect(cfg.NATS.URL, "supportbot-api")
		if err != nil {
			logger.Warn("nats unavailable, events disabled", "err", err)
		} else {
			defer nc.Drain()
			ragOpts = append(ragOpts, rag.WithPublisher(natsEvents{nc: nc, subject: cfg.NATS.EventSubject}))
		}
	}

	// --- Build the answer pipeline ---
	// An initialization failure keeps the process up but unhealthy.
	var svc answerer
	stack, initErr := app.Build(ctx, cfg, store, reg, logger, ragOpts...)
	if initErr != nil {
		logger.Error("initialization failed, serving 503", "err", initErr)
	} else {
		defer stack.Close()
		svc = stack.Service
	}

	if nc != nil && svc != nil {
		sub, err := natsutil.Respond(nc, cfg.NATS.AskSubject, "supportbot", askResponder(svc))
		if err != nil {
			return fmt.Errorf("nats responder: %w", err)
		}
		defer sub.Unsubscribe()
		logger.Info("nats responder started", "subject", cfg.NATS.AskSubject)
	}

	// --- Build HTTP server ---
	s := newServer(svc, store, reg, logger)
	handler := mid.Chain(s.routes(),
		mid.RequestID(),
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.Server.CORSOrigin),
		mid.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
		mid.OTel("supportbot-api"),
		mid.Metrics(reg),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Generator.Timeout*2 + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", srv.Addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
