package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"codraw/internal/api"
	"codraw/internal/config"
	"codraw/internal/metrics"
	"codraw/internal/routers"
	"codraw/internal/session"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(os.Getenv("CODRAW_CONFIG"))
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	registry := session.NewRegistry(cfg.GraceWindow, logger)
	h := api.NewHandlers(logger, registry, cfg.MaxMessageBytes)
	metrics.RegisterHub(
		func() float64 { return float64(registry.RoomCount()) },
		func() float64 { return float64(h.ConnectionCount()) },
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: routers.New(h),
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info("codraw hub listening",
		zap.String("addr", srv.Addr),
		zap.Duration("graceWindow", cfg.GraceWindow))

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("listen", zap.Error(err))
	}
}
