package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"membership/internal/app"
	"membership/internal/platform/config"
	"membership/internal/platform/httpserver"
	"membership/internal/platform/logger"
	"membership/internal/platform/otel"
	httptransport "membership/internal/transport/http"
)

// main serves the onboarding steps over HTTP. Business logic lives in the
// internal service packages; this file only wires and runs them.
func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		logger.New("error").Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		log.Error("setup tracing", "error", err)
		os.Exit(1)
	}

	a, err := app.Build(ctx, cfg, log, prometheus.DefaultRegisterer, app.AllComponents...)
	if err != nil {
		log.Error("build services", "error", err)
		os.Exit(1)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Steps:         a.Handler,
		Apply:         a.Pipeline,
		Members:       a.Members,
		Gatherer:      prometheus.DefaultGatherer,
		Logger:        log,
		InternalToken: cfg.Server.InternalToken,
	})
	if cfg.Server.InternalToken == "" {
		log.Warn("INTERNAL_API_TOKEN not set, step and member routes will reject every request")
	}
	srv := httpserver.New(cfg.Server, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting membership server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Error("close backends", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("flush traces", "error", err)
	}
}
