package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"driverledger/config"
	"driverledger/pkg/api"
	"driverledger/pkg/auth"
	"driverledger/pkg/bot"
	"driverledger/pkg/logger"
	"driverledger/pkg/metrics"
	"driverledger/service"
	"driverledger/storage"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, log, openStorage)
	stop()
	if err != nil {
		log.Error("registry stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("registry stopped")
}

type storageOpener func(ctx context.Context, cfg config.Config, log logger.ILogger) (storage.IStorage, error)

// run owns every resource it opens and releases them before returning.
func run(ctx context.Context, cfg config.Config, log logger.ILogger, open storageOpener) error {
	stg, err := open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.StorageDriver, err)
	}
	defer stg.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := service.New(stg, log, metrics.New(reg), service.NopProofRedeemer{})
	tokens := auth.NewTokenService(cfg.JWTSigningKey, cfg.ServiceName, cfg.JWTTTL)

	var tg *bot.Bot
	if cfg.TelegramBotToken != "" {
		tg, err = bot.New(cfg, svc, log)
		if err != nil {
			return fmt.Errorf("init telegram bot: %w", err)
		}
	} else {
		log.Info("TG_BOT_TOKEN is empty, telegram bot disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	router := api.NewRouter(svc, tokens, reg, log)
	g.Go(func() error {
		return api.RunServer(gctx, fmt.Sprintf(":%d", cfg.HTTPPort), router, log)
	})
	if tg != nil {
		g.Go(func() error {
			return tg.Run(gctx)
		})
	}

	log.Info("registry is running", logger.String("storage", cfg.StorageDriver), logger.Int("http_port", cfg.HTTPPort))
	return g.Wait()
}
