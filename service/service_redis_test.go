package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driverledger/pkg/logger"
	"driverledger/pkg/models"
	"driverledger/storage"
	"driverledger/storage/redis"
)

// Lost races on the redis store surface through WATCH/EXEC and through
// stale-read collisions; both must come back as conflicts the caller can retry.
func TestConcurrentReviewsOnRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	store := redis.NewWithClient(client, "registry:", 1024, logger.NewNop())
	t.Cleanup(store.Close)

	ctx := context.Background()
	svc := New(store, logger.NewNop(), nil, nil)

	platform, err := svc.Platform().Register(ctx, "owner-a", "Rapido")
	require.NoError(t, err)
	driver, _, err := svc.Driver().Register(ctx, RegisterDriverRequest{
		PlatformAuthority: "owner-a",
		PlatformRef:       platform.Address,
		Driver:            "driver-raju",
		Name:              "Raju",
		LicensePlate:      "KA-01-1234",
	})
	require.NoError(t, err)

	const n = 24
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		indices   []uint64
		conflicts atomic.Int64
		failures  atomic.Int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reviewer := models.Identity(fmt.Sprintf("rider-%d", i))
			for {
				review, err := svc.Review().Leave(ctx, driver.Address, reviewer, i%5+1, "ptr")
				if errors.Is(err, storage.ErrConflictingMutation) {
					conflicts.Add(1)
					continue
				}
				if err != nil {
					failures.Add(1)
					t.Errorf("rider-%d: %v", i, err)
					return
				}
				mu.Lock()
				indices = append(indices, review.Index)
				mu.Unlock()
				return
			}
		}(i)
	}
	wg.Wait()

	require.Zero(t, failures.Load())
	require.Len(t, indices, n)
	sort.Slice(indices, func(a, b int) bool { return indices[a] < indices[b] })
	for i, idx := range indices {
		assert.Equal(t, uint64(i), idx)
	}

	stored, err := svc.Driver().Get(ctx, driver.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(n), stored.ReviewCount)

	var sum uint64
	for i := uint64(0); i < n; i++ {
		review, err := svc.Review().Get(ctx, driver.Address, i)
		require.NoError(t, err)
		sum += uint64(review.Rating)
	}
	assert.Equal(t, sum, stored.RatingSum)
	t.Logf("%d conflicts retried", conflicts.Load())
}
