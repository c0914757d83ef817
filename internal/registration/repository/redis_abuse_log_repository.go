package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/allisson/registrations/internal/registration/domain"
)

// abuseKeyPrefix namespaces the per-hash sorted sets in Redis.
const abuseKeyPrefix = "abuse:"

// RedisAbuseLogRepository implements the abuse log on Redis with native TTL
// eviction. Each hashed identifier maps to a sorted set whose members are
// unique request markers scored by request time; the whole set expires after
// the abuse window, so an idle identifier leaves no data behind.
type RedisAbuseLogRepository struct {
	client *redis.Client
	window time.Duration
}

// NewRedisAbuseLogRepository creates a new Redis-backed abuse log repository.
// The window should match the rolling abuse window (24 hours).
func NewRedisAbuseLogRepository(client *redis.Client, window time.Duration) *RedisAbuseLogRepository {
	return &RedisAbuseLogRepository{client: client, window: window}
}

// LogRequest records one accepted request for a hashed identifier.
func (r *RedisAbuseLogRepository) LogRequest(
	ctx context.Context,
	record *domain.AbuseLogRecord,
) error {
	key := abuseKeyPrefix + record.PayloadHash

	pipe := r.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(record.RequestedAt.UnixNano()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, key, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return storeError("failed to log request", err)
	}
	return nil
}

// CountRequests counts accepted requests for a hashed identifier since the
// given time, trimming markers that fell out of the window along the way.
func (r *RedisAbuseLogRepository) CountRequests(
	ctx context.Context,
	payloadHash string,
	since time.Time,
) (int, error) {
	key := abuseKeyPrefix + payloadHash
	minScore := strconv.FormatInt(since.UnixNano(), 10)

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+minScore)
	count := pipe.ZCount(ctx, key, minScore, "+inf")
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, storeError("failed to count requests", err)
	}

	return int(count.Val()), nil
}

// DeleteExpired is a no-op: Redis evicts idle sets through key TTL and
// CountRequests trims stale markers on access.
func (r *RedisAbuseLogRepository) DeleteExpired(
	ctx context.Context,
	olderThan time.Time,
) (int64, error) {
	return 0, nil
}
