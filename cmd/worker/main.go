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

	"github.com/kirillkom/pulse-assistant/internal/bootstrap"
	"github.com/kirillkom/pulse-assistant/internal/config"
	"github.com/kirillkom/pulse-assistant/internal/core/domain"
	"github.com/kirillkom/pulse-assistant/internal/observability/logging"
	"github.com/kirillkom/pulse-assistant/internal/observability/metrics"
)

const serviceName = "pulse-worker"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName, Registerer: workerMetrics.Registerer()})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	queue, err := app.Queue()
	if err != nil {
		slog.Error("queue_connect_failed", "error", err)
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = queue.SubscribeRunRequests(ctx, func(handlerCtx context.Context, req domain.RunRequest) error {
		runCtx, cancel := context.WithTimeout(handlerCtx, cfg.WorkerRunTimeout)
		defer cancel()

		start := time.Now()
		workerMetrics.StartRun()
		path, err := app.Runs.WriteRun(runCtx, req)
		workerMetrics.FinishRun(serviceName, req.Mode.String(), time.Since(start), err)
		if err != nil {
			return err
		}
		slog.Info("run_job_completed", "mode", req.Mode, "path", path, "duration_ms", time.Since(start).Milliseconds())
		return nil
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
