// Package metrics implements the optional process-wide counters spec §5
// allows: request counts and a tier-usage histogram. Counters are
// updated atomically; spec §5 is explicit that exact values are not a
// correctness contract, so a Redis outage degrades to a no-op rather
// than failing the request that triggered it.
package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nlfhir/orderpipeline/internal/domain"
)

const keyPrefix = "nlfhir:metrics:"

// Recorder is the counter store C8's host calls after each Convert.
// Implementations must be safe for concurrent use.
type Recorder interface {
	RecordRequest(ctx context.Context, status string)
	RecordTierUsage(ctx context.Context, tier domain.SourceTier)
}

// memoryRecorder is the fallback used when cache.redis_url is empty or
// cache.metrics_enabled is false: in-process atomic counters, lost on
// restart, never erroring.
type memoryRecorder struct {
	requests   int64
	tierCounts map[domain.SourceTier]*int64
}

// NewMemoryRecorder constructs the in-memory fallback recorder.
func NewMemoryRecorder() Recorder {
	tiers := []domain.SourceTier{domain.TierOne, domain.TierTwo, domain.TierThree}
	counts := make(map[domain.SourceTier]*int64, len(tiers))
	for _, t := range tiers {
		var c int64
		counts[t] = &c
	}
	return &memoryRecorder{tierCounts: counts}
}

func (m *memoryRecorder) RecordRequest(ctx context.Context, status string) {
	atomic.AddInt64(&m.requests, 1)
}

func (m *memoryRecorder) RecordTierUsage(ctx context.Context, tier domain.SourceTier) {
	if c, ok := m.tierCounts[tier]; ok {
		atomic.AddInt64(c, 1)
	}
}

// redisRecorder backs the counters with Redis INCR, so that counts
// survive restarts and are shared across host processes. Every call
// tolerates a Redis error: a failed INCR only logs, since the counters
// are advisory (spec §5).
type redisRecorder struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewRedisRecorder constructs a Redis-backed Recorder. Returns an error
// only if the URL cannot be parsed; connectivity is not checked eagerly.
func NewRedisRecorder(redisURL string, logger *logrus.Logger) (Recorder, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &redisRecorder{client: redis.NewClient(opts), logger: logger}, nil
}

func (r *redisRecorder) RecordRequest(ctx context.Context, status string) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := r.client.Incr(ctx, keyPrefix+"requests:"+status).Err(); err != nil {
		r.logger.WithError(err).Debug("metrics: failed to record request count")
	}
}

func (r *redisRecorder) RecordTierUsage(ctx context.Context, tier domain.SourceTier) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := r.client.Incr(ctx, keyPrefix+"tier_usage:"+string(tier)).Err(); err != nil {
		r.logger.WithError(err).Debug("metrics: failed to record tier usage")
	}
}

// New selects a Recorder per cache config: Redis-backed when enabled
// with a non-empty URL, in-memory otherwise. A Redis construction
// failure falls back to in-memory rather than blocking startup.
func New(cfg domain.CacheConfig, logger *logrus.Logger) Recorder {
	if !cfg.MetricsEnabled || cfg.RedisURL == "" {
		return NewMemoryRecorder()
	}
	recorder, err := NewRedisRecorder(cfg.RedisURL, logger)
	if err != nil {
		logger.WithError(err).Warn("metrics: falling back to in-memory recorder")
		return NewMemoryRecorder()
	}
	return recorder
}
