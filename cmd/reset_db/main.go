package main

import (
	"context"

	"driverledger/config"
	"driverledger/pkg/logger"
	"driverledger/storage/postgres"
	"driverledger/storage/redis"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
	ctx := context.Background()

	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pg, err := postgres.New(ctx, cfg, log)
		if err != nil {
			panic(err)
		}
		defer pg.Close()

		if err := pg.Reset(ctx); err != nil {
			log.Error("failed to truncate registry_records", logger.Error(err))
			return
		}
		log.Info("registry_records truncated")
	case config.StorageRedis:
		rd, err := redis.New(ctx, cfg, log)
		if err != nil {
			panic(err)
		}
		defer rd.Close()

		deleted, err := rd.Reset(ctx)
		if err != nil {
			log.Error("failed to delete registry keys", logger.Error(err))
			return
		}
		log.Info("registry keys deleted", logger.Int("count", deleted), logger.String("prefix", cfg.RedisKeyPrefix))
	default:
		log.Info("nothing to reset", logger.String("storage", cfg.StorageDriver))
	}
}
