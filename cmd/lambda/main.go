package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"jarvis-webhook/internal/app"
	"jarvis-webhook/internal/config"
	"jarvis-webhook/internal/logging"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		// The logger level comes from config, so fall back to the default.
		logger, _ := logging.New("info")
		logger.Error("failed to load config", zap.Error(err))
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build webhook", zap.Error(err))
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	lambda.Start(a.Handler.Handle)
}
