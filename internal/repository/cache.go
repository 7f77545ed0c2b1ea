package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
	"github.com/redis/go-redis/v9"
)

// TerritoryCache 在区域索引前加一层 redis 缓存。
// redis 不可用时直接回源，只记录警告日志。
type TerritoryCache struct {
	next    scheduler.TerritoryIndex
	rdb     redis.Cmdable
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

var _ scheduler.TerritoryIndex = (*TerritoryCache)(nil)

func NewTerritoryCache(next scheduler.TerritoryIndex, rdb redis.Cmdable, ttl, timeout time.Duration, logger *slog.Logger) *TerritoryCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &TerritoryCache{
		next:    next,
		rdb:     rdb,
		ttl:     ttl,
		timeout: timeout,
		logger:  logger,
	}
}

func territoryKey(orgID int64, postalCode string) string {
	return fmt.Sprintf("territories_%d_%s", orgID, postalCode)
}

func (c *TerritoryCache) FindActiveTerritoriesByPostalCode(ctx context.Context, orgID int64, postalCode string) ([]*domain.Territory, error) {
	if c.ttl <= 0 {
		return c.next.FindActiveTerritoriesByPostalCode(ctx, orgID, postalCode)
	}

	key := territoryKey(orgID, postalCode)

	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	cached, err := c.rdb.Get(rctx, key).Bytes()
	cancel()
	switch {
	case err == nil:
		var territories []*domain.Territory
		if err := json.Unmarshal(cached, &territories); err == nil {
			return territories, nil
		}
		c.logger.Warn("区域缓存内容无法解析，回源查询", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("读取区域缓存失败，回源查询", slog.String("key", key), slog.String("error", err.Error()))
	}

	territories, err := c.next.FindActiveTerritoriesByPostalCode(ctx, orgID, postalCode)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(territories)
	if err != nil {
		return territories, nil
	}
	rctx, cancel = context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.rdb.Set(rctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("写入区域缓存失败", slog.String("key", key), slog.String("error", err.Error()))
	}

	return territories, nil
}

// Invalidate 在区域或邮编变更后调用
func (c *TerritoryCache) Invalidate(ctx context.Context, orgID int64, postalCodes ...string) error {
	if len(postalCodes) == 0 {
		return nil
	}

	keys := make([]string, 0, len(postalCodes))
	for _, code := range postalCodes {
		keys = append(keys, territoryKey(orgID, code))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.rdb.Del(ctx, keys...).Err()
}
