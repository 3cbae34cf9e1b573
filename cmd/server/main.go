package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/fastygo/botgateway/internal/app"
	"github.com/fastygo/botgateway/internal/config"
	"github.com/fastygo/botgateway/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gateway, err := app.New(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("startup failed", zap.Error(err))
	}
	gateway.ListenForSignals(cancel)

	zapLogger.Info("connecting to bot service", zap.String("url", cfg.Downstream.BaseURL))
	if err := gateway.Run(appCtx); err != nil {
		zapLogger.Error("gateway stopped with error", zap.Error(err))
	}
}
