package metrics

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/nlfhir/orderpipeline/internal/domain"
)

func TestMemoryRecorder_CountsTierUsage(t *testing.T) {
	r := NewMemoryRecorder().(*memoryRecorder)
	ctx := context.Background()

	r.RecordTierUsage(ctx, domain.TierOne)
	r.RecordTierUsage(ctx, domain.TierOne)
	r.RecordTierUsage(ctx, domain.TierThree)

	assert.EqualValues(t, 2, *r.tierCounts[domain.TierOne])
	assert.EqualValues(t, 1, *r.tierCounts[domain.TierThree])
	assert.EqualValues(t, 0, *r.tierCounts[domain.TierTwo])
}

func TestMemoryRecorder_CountsRequests(t *testing.T) {
	r := NewMemoryRecorder().(*memoryRecorder)
	ctx := context.Background()

	r.RecordRequest(ctx, "completed")
	r.RecordRequest(ctx, "validation_failed")

	assert.EqualValues(t, 2, r.requests)
}

func TestNew_FallsBackToMemoryWhenDisabled(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	rec := New(domain.CacheConfig{MetricsEnabled: false}, logger)
	_, ok := rec.(*memoryRecorder)
	assert.True(t, ok)
}

func TestNew_FallsBackToMemoryOnBadRedisURL(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	rec := New(domain.CacheConfig{MetricsEnabled: true, RedisURL: "not-a-valid-url"}, logger)
	_, ok := rec.(*memoryRecorder)
	assert.True(t, ok)
}
