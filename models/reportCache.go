package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/closing_backend/config"
	"github.com/mmdatafocus/closing_backend/utils"
)

const reportCacheGenerationKey = "ReportStats:gen"

// ReportCache keeps stats results in redis. Every key embeds a generation number;
// Invalidate bumps it so old entries are never read again and expire on their own.
// A nil *ReportCache caches nothing.
type ReportCache struct {
	redis *config.Redis
	ttl   time.Duration
}

// NewReportCache returns nil unless ENABLE_REPORT_CACHE is set and redis is connected.
func NewReportCache(redis *config.Redis) *ReportCache {
	if redis == nil || !config.ReportCacheEnabled() {
		return nil
	}
	return &ReportCache{redis: redis, ttl: config.ReportCacheTTL()}
}

func (c *ReportCache) generation(ctx context.Context) string {
	v, ok, err := c.redis.GetValue(ctx, reportCacheGenerationKey)
	if err != nil || !ok {
		return "0"
	}
	return v
}

func (c *ReportCache) key(ctx context.Context, name string, q StatsQuery) string {
	tenant := q.TenantCode
	if tenant == "" {
		tenant, _ = utils.GetTenantCodeFromContext(ctx)
	}
	parts := []string{
		"ReportStats", c.generation(ctx), name, tenant,
		q.Start.Compact(), q.End.Compact(), strconv.Itoa(q.Limit),
	}
	return strings.Join(parts, ":")
}

func (c *ReportCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if _, err := c.redis.Incr(ctx, reportCacheGenerationKey); err != nil {
		config.LogError(config.GetLogger(), "reportCache.go", "Invalidate", "bump report cache generation", nil, err)
	}
}

// cachedReport serves name/q from the cache when possible, otherwise runs load and stores the result.
func cachedReport[T any](ctx context.Context, c *ReportCache, name string, q StatsQuery, load func() (T, error)) (T, error) {
	started := time.Now()
	defer logSlowReport(ctx, name, started, q)

	if c == nil {
		return load()
	}
	key := c.key(ctx, name, q)
	var cached T
	if ok, err := c.redis.GetObject(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	result, err := load()
	if err != nil {
		return result, err
	}
	_ = c.redis.SetObject(ctx, key, result, c.ttl)
	return result, nil
}

func logSlowReport(ctx context.Context, name string, started time.Time, q StatsQuery) {
	d := time.Since(started)
	if d < config.ReportSlowThreshold() {
		return
	}
	tenant, _ := utils.GetTenantCodeFromContext(ctx)
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	config.GetLogger().WithFields(map[string]interface{}{
		"report":         name,
		"ms":             d.Milliseconds(),
		"comp_cd":        tenant,
		"correlation_id": cid,
		"range":          fmt.Sprintf("%s..%s", q.Start, q.End),
	}).Warn("slow_report")
}
