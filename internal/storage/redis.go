package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"chat-gateway/internal/domain"

	"github.com/go-redis/redis/v8"
)

// KeyPrefix é o prefixo de todas as chaves de rate limit
const KeyPrefix = "rate_limit:"

// hitScript executa o ciclo completo de contagem de forma atômica no Redis.
// A expiração da chave acompanha o início da janela, então registros antigos
// somem sozinhos sem precisar de varredura.
var hitScript = redis.NewScript(`
	local key = KEYS[1]
	local window = tonumber(ARGV[1])
	local blockAfter = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local maxAge = tonumber(ARGV[4])

	local data = nil
	local current = redis.call('GET', key)
	if current then
		data = cjson.decode(current)
	end

	-- Janela nova também limpa o bloqueio
	if not data or (now - data.windowStart) > window then
		data = {
			clientKey = key,
			count = 0,
			windowStart = now,
			blocked = false
		}
	end

	if not data.blocked then
		data.count = data.count + 1
		if data.count > blockAfter then
			data.blocked = true
		end
	end

	local expire = data.windowStart + maxAge - now
	if expire < 1 then
		expire = 1
	end
	redis.call('SET', key, cjson.encode(data), 'PX', expire)

	local blocked = 0
	if data.blocked then
		blocked = 1
	end
	return {data.count, data.windowStart, blocked}
`)

// redisRecord é a representação serializada de um RateRecord (windowStart em unix ms)
type redisRecord struct {
	ClientKey   string `json:"clientKey"`
	Count       int    `json:"count"`
	WindowStart int64  `json:"windowStart"`
	Blocked     bool   `json:"blocked"`
}

// RedisStorage implementa a interface domain.RateRecordStore usando Redis
type RedisStorage struct {
	client       redis.UniversalClient
	logger       domain.Logger
	recordMaxAge time.Duration
	now          func() time.Time
}

// NewRedisStorage cria uma nova instância do RedisStorage
func NewRedisStorage(host, port, password string, db int, recordMaxAge time.Duration, logger domain.Logger) (*RedisStorage, error) {
	// Configura cliente Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       db,

		// Configurações de performance
		PoolSize:     20,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
	})

	// Testa a conexão
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger != nil {
		logger.Info("Redis connection established", map[string]interface{}{
			"host": host,
			"port": port,
			"db":   db,
		})
	}

	return newRedisStorageWithClient(rdb, recordMaxAge, logger), nil
}

func newRedisStorageWithClient(client redis.UniversalClient, recordMaxAge time.Duration, logger domain.Logger) *RedisStorage {
	if recordMaxAge <= 0 {
		recordMaxAge = defaultRecordMaxAge
	}
	return &RedisStorage{
		client:       client,
		logger:       logger,
		recordMaxAge: recordMaxAge,
		now:          time.Now,
	}
}

// Get recupera o registro atual de uma chave
func (r *RedisStorage) Get(ctx context.Context, key string) (*domain.RateRecord, error) {
	start := time.Now()

	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			r.logStorageOperation("GET", key, true, time.Since(start).Seconds()*1000, nil)
			return nil, nil
		}
		r.logStorageOperation("GET", key, false, time.Since(start).Seconds()*1000, err)
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var stored redisRecord
	if err := json.Unmarshal([]byte(result), &stored); err != nil {
		r.logStorageOperation("GET", key, false, time.Since(start).Seconds()*1000, err)
		return nil, fmt.Errorf("failed to unmarshal record for key %s: %w", key, err)
	}

	r.logStorageOperation("GET", key, true, time.Since(start).Seconds()*1000, nil)
	return &domain.RateRecord{
		ClientKey:   stored.ClientKey,
		Count:       stored.Count,
		WindowStart: time.UnixMilli(stored.WindowStart),
		Blocked:     stored.Blocked,
	}, nil
}

// Hit contabiliza uma requisição via script Lua
func (r *RedisStorage) Hit(ctx context.Context, key string, window time.Duration, blockAfter int) (*domain.RateRecord, error) {
	start := time.Now()

	now := r.now().UnixMilli()
	result, err := hitScript.Run(ctx, r.client, []string{key},
		window.Milliseconds(), blockAfter, now, r.recordMaxAge.Milliseconds()).Result()
	if err != nil {
		r.logStorageOperation("HIT", key, false, time.Since(start).Seconds()*1000, err)
		return nil, fmt.Errorf("failed to hit key %s: %w", key, err)
	}

	record, err := parseHitResult(key, result)
	if err != nil {
		r.logStorageOperation("HIT", key, false, time.Since(start).Seconds()*1000, err)
		return nil, err
	}

	r.logStorageOperation("HIT", key, true, time.Since(start).Seconds()*1000, nil)
	return record, nil
}

// parseHitResult converte a resposta {count, windowStart, blocked} do script
func parseHitResult(key string, result interface{}) (*domain.RateRecord, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("invalid hit result for key %s", key)
	}

	count, err := strconv.Atoi(fmt.Sprint(values[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid count in result for key %s: %w", key, err)
	}

	windowStartMs, err := strconv.ParseInt(fmt.Sprint(values[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid windowStart in result for key %s: %w", key, err)
	}

	return &domain.RateRecord{
		ClientKey:   key,
		Count:       count,
		WindowStart: time.UnixMilli(windowStartMs),
		Blocked:     fmt.Sprint(values[2]) == "1",
	}, nil
}

// Reset limpa os dados de uma chave
func (r *RedisStorage) Reset(ctx context.Context, key string) error {
	start := time.Now()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logStorageOperation("RESET", key, false, time.Since(start).Seconds()*1000, err)
		return fmt.Errorf("failed to reset key %s: %w", key, err)
	}

	r.logStorageOperation("RESET", key, true, time.Since(start).Seconds()*1000, nil)
	return nil
}

// Sweep não tem trabalho a fazer: o PX do script já remove registros antigos
func (r *RedisStorage) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	return 0, nil
}

// Len conta as chaves de rate limit com SCAN
func (r *RedisStorage) Len(ctx context.Context) (int, error) {
	count := 0
	iter := r.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan rate limit keys: %w", err)
	}
	return count, nil
}

// Health verifica se o storage está saudável
func (r *RedisStorage) Health(ctx context.Context) error {
	start := time.Now()

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.logStorageOperation("HEALTH", "ping", false, time.Since(start).Seconds()*1000, err)
		return fmt.Errorf("Redis health check failed: %w", err)
	}

	r.logStorageOperation("HEALTH", "ping", true, time.Since(start).Seconds()*1000, nil)
	return nil
}

// Close fecha a conexão com o storage
func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		if r.logger != nil {
			r.logger.Error("Failed to close Redis connection", err, nil)
		}
		return err
	}
	if r.logger != nil {
		r.logger.Info("Redis connection closed", nil)
	}
	return nil
}

// logStorageOperation registra operações de storage
func (r *RedisStorage) logStorageOperation(operation, key string, success bool, latency float64, err error) {
	if r.logger == nil {
		return
	}

	if success {
		r.logger.Debug("Storage operation completed", map[string]interface{}{
			"operation": operation,
			"key":       key,
			"latency":   latency,
		})
	} else {
		r.logger.Error("Storage operation failed", err, map[string]interface{}{
			"operation": operation,
			"key":       key,
			"latency":   latency,
		})
	}
}
