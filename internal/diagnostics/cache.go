package diagnostics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"curriculumhub/internal/logger"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ResultCache 实现探针结果冷却缓存接口
// 读写失败一律视为未命中，不影响诊断本身
type ResultCache interface {
	Get(ctx context.Context, key string) (*ProbeResult, bool)
	Set(ctx context.Context, key string, result ProbeResult, ttl time.Duration)
}

// Fingerprint 由凭证、地址与模型生成缓存键，不保存凭证原文
func Fingerprint(apiKey, baseURL, model string) string {
	sum := sha256.Sum256([]byte(apiKey + "|" + baseURL + "|" + model))
	return hex.EncodeToString(sum[:8])
}

// MemoryResultCache 进程内实现
type MemoryResultCache struct {
	store *gocache.Cache
}

// NewMemoryResultCache 创建进程内缓存
func NewMemoryResultCache() *MemoryResultCache {
	return &MemoryResultCache{store: gocache.New(5*time.Minute, 10*time.Minute)}
}

// Get 读取缓存
func (c *MemoryResultCache) Get(_ context.Context, key string) (*ProbeResult, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	res, ok := v.(ProbeResult)
	if !ok {
		return nil, false
	}
	return &res, true
}

// Set 写入缓存
func (c *MemoryResultCache) Set(_ context.Context, key string, result ProbeResult, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.store.Set(key, result, ttl)
}

// RedisResultCache Redis 实现，多实例共享冷却窗口
type RedisResultCache struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

// NewRedisResultCache 创建 Redis 缓存
func NewRedisResultCache(client *redis.Client) *RedisResultCache {
	return &RedisResultCache{
		client: client,
		prefix: "curriculumhub:diagnostics:implementation:",
		log:    logger.Named("diagnostics.cache"),
	}
}

// Get 读取缓存
func (c *RedisResultCache) Get(ctx context.Context, key string) (*ProbeResult, bool) {
	if c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("读取诊断缓存失败", zap.Error(err))
		}
		return nil, false
	}

	var res ProbeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.log.Warn("解析诊断缓存失败", zap.Error(err))
		return nil, false
	}
	return &res, true
}

// Set 写入缓存
func (c *RedisResultCache) Set(ctx context.Context, key string, result ProbeResult, ttl time.Duration) {
	if c.client == nil || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		c.log.Warn("序列化诊断结果失败", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		c.log.Warn("写入诊断缓存失败", zap.Error(err))
	}
}
