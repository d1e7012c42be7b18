package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/gofiber/fiber/v2"

	"prompt-agent/handler"
	"prompt-agent/internal/app"
	"prompt-agent/internal/config"
	"prompt-agent/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration from env/.env
	cfg := config.Load()
	if _, err := logging.Init(cfg); err != nil {
		slog.Error("failed to open log file", "err", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	svc, err := app.NewPromptService(ctx, cfg, awsCfg)
	if err != nil {
		slog.Error("failed to create prompt service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(svc, handler.WithMaxUploadBytes(cfg.MaxUploadBytes))
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	fiberApp := fiber.New(fiber.Config{
		BodyLimit:             int(cfg.MaxUploadBytes) + handler.MultipartOverhead,
		DisableStartupMessage: true,
	})
	h.Register(fiberApp)

	errCh := make(chan error, 1)
	go func() {
		addr := net.JoinHostPort("", cfg.Port)
		slog.Info("listening", "addr", addr, "notify_mode", cfg.NotifyMode)
		errCh <- fiberApp.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Error("server stopped", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	if err := fiberApp.ShutdownWithTimeout(shutdownTimeout); err != nil {
		slog.Error("shutdown failed", "err", err)
	}
	// let pending email notifications finish
	svc.Wait()
}
