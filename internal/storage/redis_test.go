package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHitResult(t *testing.T) {
	tests := []struct {
		name          string
		result        interface{}
		expectError   bool
		expectedCount int
		expectBlocked bool
	}{
		{
			name:          "Should parse allowed record",
			result:        []interface{}{int64(3), int64(1760000000000), int64(0)},
			expectedCount: 3,
		},
		{
			name:          "Should parse blocked record",
			result:        []interface{}{int64(9), int64(1760000000000), int64(1)},
			expectedCount: 9,
			expectBlocked: true,
		},
		{
			name:        "Should reject wrong shape",
			result:      []interface{}{int64(1)},
			expectError: true,
		},
		{
			name:        "Should reject non slice",
			result:      "OK",
			expectError: true,
		},
		{
			name:        "Should reject invalid count",
			result:      []interface{}{"x", int64(1760000000000), int64(0)},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := parseHitResult("rate_limit:ip:10.0.0.1", tt.result)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, record)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "rate_limit:ip:10.0.0.1", record.ClientKey)
			assert.Equal(t, tt.expectedCount, record.Count)
			assert.Equal(t, tt.expectBlocked, record.Blocked)
			assert.Equal(t, time.UnixMilli(1760000000000), record.WindowStart)
		})
	}
}

// newRedisTestStorage conecta em REDIS_TEST_ADDR; sem Redis acessível o teste é pulado
func newRedisTestStorage(t *testing.T) *RedisStorage {
	t.Helper()

	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available at %s: %v", addr, err)
	}

	storage := newRedisStorageWithClient(client, 5*time.Minute, nil)
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestRedisStorage_HitLifecycle(t *testing.T) {
	storage := newRedisTestStorage(t)
	ctx := context.Background()
	key := KeyPrefix + "ip:redis-test-lifecycle"
	require.NoError(t, storage.Reset(ctx, key))

	now := time.Now()
	storage.now = func() time.Time { return now }

	// Cinco permitidas, três acima do limite suave e o bloqueio na nona
	for i := 1; i <= 9; i++ {
		hit, err := storage.Hit(ctx, key, time.Minute, 8)
		require.NoError(t, err)
		assert.Equal(t, i, hit.Count)
		assert.Equal(t, i == 9, hit.Blocked)
	}

	// Bloqueado não incrementa
	hit, err := storage.Hit(ctx, key, time.Minute, 8)
	require.NoError(t, err)
	assert.Equal(t, 9, hit.Count)
	assert.True(t, hit.Blocked)

	stored, err := storage.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Blocked)

	// Janela expirada reinicia contagem e bloqueio
	storage.now = func() time.Time { return now.Add(61 * time.Second) }
	hit, err = storage.Hit(ctx, key, time.Minute, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, hit.Count)
	assert.False(t, hit.Blocked)

	count, err := storage.Len(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)

	require.NoError(t, storage.Reset(ctx, key))
	stored, err = storage.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, stored)
}
