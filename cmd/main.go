package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"prompt-agent/handler"
	"prompt-agent/internal/app"
	"prompt-agent/internal/config"
	"prompt-agent/internal/logging"
	"prompt-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg := config.Load()
	// The Lambda runtime freezes once the handler returns, so background
	// sends would never complete.
	cfg.NotifyMode = string(usecase.NotifySync)

	if _, err := logging.Init(cfg); err != nil {
		slog.Error("failed to open log file", "err", err)
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Service ----
	svc, err := app.NewPromptService(ctx, cfg, awsCfg)
	if err != nil {
		slog.Error("failed to create prompt service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(svc, handler.WithMaxUploadBytes(cfg.MaxUploadBytes))
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
