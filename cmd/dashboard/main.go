// cmd/dashboard/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"heart-risk-dashboard/internal/common/config"
	"heart-risk-dashboard/internal/common/database"
	apperrors "heart-risk-dashboard/internal/common/errors"
	"heart-risk-dashboard/internal/common/logger"
	"heart-risk-dashboard/internal/common/observability"
	"heart-risk-dashboard/internal/form"
	"heart-risk-dashboard/internal/predict"
	"heart-risk-dashboard/internal/schema"
	"heart-risk-dashboard/internal/session"
	"heart-risk-dashboard/internal/ui"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console", "")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting heart risk dashboard...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	var obs *observability.Observability
	if cfg.Metrics.Enabled {
		obs, err = observability.New(cfg.App.Name)
		if err != nil {
			zapLog.Fatal("observability init failed", zap.Error(err))
		}
		defer obs.Shutdown()
	}

	formSchema, err := schema.LoadFile(cfg.Form.SchemaPath)
	if err != nil {
		stdErr := apperrors.NewSchemaInvalidError(err)
		zapLog.Fatal("form schema load failed", zap.String("code", string(stdErr.Code)), zap.String("details", stdErr.Details))
	}

	client := predict.NewClient(cfg.Prediction,
		predict.WithSchema(formSchema),
		predict.WithLogger(log.With(map[string]interface{}{"component": "predict"})),
	)

	// --- Session store ---
	var store session.Store
	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		rdb := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return rdb.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis unavailable after retries", zap.Error(err))
		}
		defer rdb.Close()
		zapLog.Info("Redis connected successfully", zap.String("address", cfg.Database.Redis.Address))
		store = session.NewRedisStore(rdb.Client, cfg.Session.KeyPrefix, config.GetDuration(cfg.Session.TTL))
	default:
		store = session.NewMemoryStore(config.GetDuration(cfg.Session.TTL))
	}

	registry := session.NewRegistry(session.Config{
		Schema:    formSchema,
		Predictor: client,
		Store:     store,
		TTL:       config.GetDuration(cfg.Session.TTL),
		Logger:    log,
		FormOptions: []form.Option{
			form.WithOrdering(form.ParseOrdering(cfg.Form.Ordering)),
			form.WithBackendURL(client.BaseURL()),
		},
	})

	uiOpts := ui.Options{
		Registry:      registry,
		Schema:        formSchema,
		Assets:        client,
		Observability: obs,
		Logger:        log,
		CookieName:    cfg.Session.CookieName,
	}
	if cfg.Metrics.Enabled {
		uiOpts.MetricsPath = cfg.Metrics.Path
		uiOpts.MetricsHandler = promhttp.Handler()
	}
	handler, err := ui.NewServer(uiOpts)
	if err != nil {
		zapLog.Fatal("ui init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepEvery := config.GetDuration(cfg.Session.TTL) / 4
	if sweepEvery < time.Minute {
		sweepEvery = time.Minute
	}
	go registry.Run(ctx, sweepEvery)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("Dashboard listening",
			zap.String("address", cfg.Server.Address),
			zap.String("backend", client.BaseURL()),
			zap.String("sessionStore", cfg.Session.Store),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, draining requests...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error during HTTP shutdown", zap.Error(err))
	}

	drained := make(chan struct{})
	go func() {
		handler.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		zapLog.Warn("Predictions still in flight at shutdown")
	}

	zapLog.Info("Dashboard stopped gracefully")
}
