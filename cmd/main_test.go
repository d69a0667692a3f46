package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driverledger/config"
	"driverledger/pkg/logger"
	"driverledger/storage"
	"driverledger/storage/memory"
)

type closeRecorder struct {
	*memory.Store
	closed int
}

func (c *closeRecorder) Close() { c.closed++ }

func openRecorder(rec *closeRecorder) storageOpener {
	return func(context.Context, config.Config, logger.ILogger) (storage.IStorage, error) {
		return rec, nil
	}
}

func testConfig(port int) config.Config {
	return config.Config{
		ServiceName:   "driverledger-test",
		HTTPPort:      port,
		StorageDriver: config.StorageMemory,
		MaxRecordSize: 1024,
		JWTSigningKey: "test",
		JWTTTL:        time.Hour,
	}
}

func TestRunClosesStorageOnShutdown(t *testing.T) {
	rec := &closeRecorder{Store: memory.New(1024)}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, run(ctx, testConfig(0), logger.NewNop(), openRecorder(rec)))
	assert.Equal(t, 1, rec.closed)
}

func TestRunClosesStorageWhenServerFails(t *testing.T) {
	rec := &closeRecorder{Store: memory.New(1024)}

	err := run(context.Background(), testConfig(-1), logger.NewNop(), openRecorder(rec))
	require.Error(t, err)
	assert.Equal(t, 1, rec.closed)
}

func TestRunReportsStorageFailure(t *testing.T) {
	boom := errors.New("connection refused")
	open := func(context.Context, config.Config, logger.ILogger) (storage.IStorage, error) {
		return nil, boom
	}

	err := run(context.Background(), testConfig(0), logger.NewNop(), open)
	assert.ErrorIs(t, err, boom)
}

func TestOpenStorageUnknownDriver(t *testing.T) {
	cfg := testConfig(0)
	cfg.StorageDriver = "cassandra"
	_, err := openStorage(context.Background(), cfg, logger.NewNop())
	assert.Error(t, err)
}
