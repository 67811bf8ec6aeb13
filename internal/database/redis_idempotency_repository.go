package database

import (
	"context"
	"fmt"
	"time"

	"campaign-server/internal/interfaces"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Compile-time check to ensure redisIdempotencyRepository implements IdempotencyRepository
var _ interfaces.IdempotencyRepository = (*redisIdempotencyRepository)(nil)

// pendingMarker хранится под ключом между Reserve и Put. Значение не похоже
// на JSON результата, поэтому Get отличает резервацию от готового ответа.
const pendingMarker = "__pending__"

type redisIdempotencyRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisIdempotencyRepository creates a new Redis-backed IdempotencyRepository.
// Stored results expire after ttl so replayed keys eventually free up.
func NewRedisIdempotencyRepository(client *redis.Client, ttl time.Duration, logger *zap.Logger) interfaces.IdempotencyRepository {
	return &redisIdempotencyRepository{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisIdempotencyRepo"),
	}
}

func (r *redisIdempotencyRepository) Get(ctx context.Context, key string) ([]byte, error) {
	redisKey := fmt.Sprintf("duplication_result:%s", key)
	payload, err := r.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			r.logger.Debug("Idempotency key not found in Redis", zap.String("key", key))
			return nil, interfaces.ErrNotFound
		}
		r.logger.Error("Failed to get idempotency record from redis", zap.Error(err), zap.String("key", redisKey))
		return nil, fmt.Errorf("failed to get idempotency record from redis: %w", err)
	}
	if string(payload) == pendingMarker {
		r.logger.Debug("Idempotency key is reserved but not finished", zap.String("key", key))
		return nil, interfaces.ErrPending
	}
	return payload, nil
}

// Reserve захватывает ключ через SETNX: из двух конкурентных запросов с одним
// ключом ровно один получает true и выполняет работу.
func (r *redisIdempotencyRepository) Reserve(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("duplication_result:%s", key)
	ok, err := r.client.SetNX(ctx, redisKey, pendingMarker, r.ttl).Result()
	if err != nil {
		r.logger.Error("Failed to reserve idempotency key in redis", zap.Error(err), zap.String("key", redisKey))
		return false, fmt.Errorf("failed to reserve idempotency key in redis: %w", err)
	}
	r.logger.Debug("Idempotency key reservation attempted",
		zap.String("key", redisKey),
		zap.Bool("acquired", ok),
	)
	return ok, nil
}

func (r *redisIdempotencyRepository) Put(ctx context.Context, key string, payload []byte) error {
	redisKey := fmt.Sprintf("duplication_result:%s", key)
	r.logger.Debug("Storing idempotency record in Redis",
		zap.String("key", redisKey),
		zap.Duration("ttl", r.ttl),
	)
	if err := r.client.Set(ctx, redisKey, payload, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to store idempotency record in redis", zap.Error(err), zap.String("key", redisKey))
		return fmt.Errorf("failed to store idempotency record in redis: %w", err)
	}
	return nil
}

func (r *redisIdempotencyRepository) Release(ctx context.Context, key string) error {
	redisKey := fmt.Sprintf("duplication_result:%s", key)
	if err := r.client.Del(ctx, redisKey).Err(); err != nil {
		r.logger.Error("Failed to release idempotency key in redis", zap.Error(err), zap.String("key", redisKey))
		return fmt.Errorf("failed to release idempotency key in redis: %w", err)
	}
	return nil
}
