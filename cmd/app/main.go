package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"otmarket/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

const configPath = "configs/config.yaml"

func main() {
	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Admin + Pprof Server (localhost only by default)
	admin := &http.Server{
		Addr:              cfg.Admin.Addr,
		Handler:           app.NewAdminHandler(bootstrap.Statistics, bootstrap.Metrics, bootstrap.Dispatcher, http.DefaultServeMux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("🕵️ Admin server started", slog.String("addr", cfg.Admin.Addr))
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Admin server failed", slog.Any("error", err))
		}
	}()

	// 4. Dispatcher, storage worker, first sweep
	bootstrap.Start(ctx)

	slog.InfoContext(ctx, "✨ Market engine fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.Info("👋 Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := admin.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Admin server shutdown", slog.Any("error", err))
	}
	if err := bootstrap.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown incomplete", slog.Any("error", err))
		os.Exit(1)
	}
}
