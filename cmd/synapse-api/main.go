// Synapse API — HTTP API для запуска runs и чтения их истории.
//
// Синхронный POST /api/v1/runs выполняет pipeline в этом процессе и отдаёт
// снимки потоком NDJSON. С ?async=true run уходит в очередь runs.pending.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/synapse/internal/api"
	"github.com/shaiso/synapse/internal/app"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("synapse-api: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{Name: "synapse-api"})
	if err != nil {
		os.Stderr.WriteString("synapse-api: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer a.Close(context.Background())
	logger := a.Logger

	handlerCfg := api.Config{
		Service: a.Service,
		Metrics: a.MetricsHandler(),
		Logger:  logger,
	}
	if a.Runs != nil {
		handlerCfg.Runs = a.Runs
		handlerCfg.Snapshots = a.Snapshots
	}
	handler := api.NewHandler(handlerCfg)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	addr := ":" + cfg.API.Port

	// Без WriteTimeout: синхронный run отдаётся потоком
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
