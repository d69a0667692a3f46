package main

import (
	"context"
	"fmt"

	"driverledger/config"
	"driverledger/pkg/logger"
	"driverledger/storage"
	"driverledger/storage/memory"
	"driverledger/storage/postgres"
	"driverledger/storage/redis"
)

func openStorage(ctx context.Context, cfg config.Config, log logger.ILogger) (storage.IStorage, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		log.Warning("using in-memory storage, records are lost on restart")
		return memory.New(cfg.MaxRecordSize), nil
	case config.StoragePostgres:
		return postgres.New(ctx, cfg, log)
	case config.StorageRedis:
		return redis.New(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}
