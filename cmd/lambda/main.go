package main

import (
	"context"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"

	"membership/internal/app"
	"membership/internal/platform/config"
	"membership/internal/platform/logger"
	"membership/internal/platform/otel"
	"membership/internal/transport/lambda"
)

// main serves the step named by LAMBDA_HANDLER. Only the backends that step
// needs are configured.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("error").Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel).With("handler", cfg.LambdaHandler)
	ctx := context.Background()

	components, err := lambda.Components(cfg.LambdaHandler)
	if err != nil {
		log.Error("select handler", "error", err)
		os.Exit(1)
	}

	shutdownTracing, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		log.Error("setup tracing", "error", err)
		os.Exit(1)
	}

	a, err := app.Build(ctx, cfg, log, prometheus.NewRegistry(), components...)
	if err != nil {
		log.Error("build services", "error", err)
		os.Exit(1)
	}

	step, err := lambda.Select(cfg.LambdaHandler, a.Handler, a.Pipeline)
	if err != nil {
		log.Error("select handler", "error", err)
		os.Exit(1)
	}

	awslambda.StartWithOptions(lambda.Adapt(step), awslambda.WithEnableSIGTERM(func() {
		if err := a.Close(ctx); err != nil {
			log.Error("close backends", "error", err)
		}
		if err := shutdownTracing(ctx); err != nil {
			log.Error("flush traces", "error", err)
		}
	}))
}
