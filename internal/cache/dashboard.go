package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tiendanorte/compraplan/internal/config"
	"github.com/tiendanorte/compraplan/internal/domain"
)

const (
	dashboardKeyPrefix = "dashboard:board"
	scanBatchSize      = 100
)

// DashboardCache holds rendered dashboard responses for a short TTL. Sync
// completions and purchase-order writes invalidate every cached variant.
type DashboardCache interface {
	Get(ctx context.Context, query domain.DashboardQuery) (*domain.DashboardResponse, bool, error)
	Set(ctx context.Context, query domain.DashboardQuery, resp *domain.DashboardResponse) error
	InvalidateAll(ctx context.Context) error
}

type redisDashboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopDashboardCache struct{}

func NewDashboardCache(cfg config.CacheConfig) (DashboardCache, error) {
	if !cfg.Enabled {
		return &noopDashboardCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisDashboardCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopDashboardCache() DashboardCache {
	return &noopDashboardCache{}
}

func (c *redisDashboardCache) Get(ctx context.Context, query domain.DashboardQuery) (*domain.DashboardResponse, bool, error) {
	key := buildDashboardKey(query)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var resp domain.DashboardResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, false, fmt.Errorf("decode dashboard cache: %w", err)
	}

	return &resp, true, nil
}

func (c *redisDashboardCache) Set(ctx context.Context, query domain.DashboardQuery, resp *domain.DashboardResponse) error {
	key := buildDashboardKey(query)
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode dashboard cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (c *redisDashboardCache) InvalidateAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, dashboardKeyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

func (n *noopDashboardCache) Get(ctx context.Context, query domain.DashboardQuery) (*domain.DashboardResponse, bool, error) {
	return nil, false, nil
}

func (n *noopDashboardCache) Set(ctx context.Context, query domain.DashboardQuery, resp *domain.DashboardResponse) error {
	return nil
}

func (n *noopDashboardCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func buildDashboardKey(query domain.DashboardQuery) string {
	parts := []string{"months=" + strconv.Itoa(query.Months)}
	if query.SKUPrefix != "" {
		parts = append(parts, "sku_prefix="+strings.ToUpper(query.SKUPrefix))
	}

	raw := strings.Join(parts, "|")
	hash := sha1.Sum([]byte(raw))
	return fmt.Sprintf("%s:%s", dashboardKeyPrefix, hex.EncodeToString(hash[:]))
}
