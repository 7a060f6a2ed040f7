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

	"github.com/joho/godotenv"

	httpadapter "github.com/kirillkom/pulse-assistant/internal/adapters/http"
	"github.com/kirillkom/pulse-assistant/internal/bootstrap"
	"github.com/kirillkom/pulse-assistant/internal/config"
	"github.com/kirillkom/pulse-assistant/internal/observability/logging"
	"github.com/kirillkom/pulse-assistant/internal/observability/metrics"
)

const serviceName = "pulse-api"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName, Registerer: httpMetrics.Registerer()})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	go func() {
		if err := app.Retriever.Warm(ctx, app.Chat.Mode()); err != nil {
			slog.Warn("index_warmup_failed", "mode", app.Chat.Mode(), "error", err)
		}
	}()

	sessions := httpadapter.NewSessionManager(cfg.APISessionIdleExpiry, app.RegistryOptions...)
	stopSweeper := make(chan struct{})
	defer close(stopSweeper)
	go sessions.RunSweeper(time.Minute, stopSweeper)

	router := httpadapter.NewRouter(app.Chat, sessions, httpadapter.Options{
		Service:          serviceName,
		Metrics:          httpMetrics,
		RateLimitRPS:     cfg.APIRateLimitRPS,
		RateLimitBurst:   cfg.APIRateLimitBurst,
		MaxInFlight:      cfg.APIMaxInFlight,
		BackpressureWait: cfg.APIBackpressureWait,
		Transcripts:      app.Transcripts,
	}).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
