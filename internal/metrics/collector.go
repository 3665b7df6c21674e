package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

const defaultCollectInterval = 15 * time.Second

// 连接池指标
var (
	// DBConnections 数据库连接数
	DBConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "curriculumhub_db_connections",
			Help: "数据库连接池状态",
		},
		[]string{"state"}, // open, in_use, idle
	)

	// RedisConnections Redis 连接数
	RedisConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "curriculumhub_redis_connections",
			Help: "Redis 连接池状态",
		},
		[]string{"state"}, // total, idle, stale
	)

	// RedisPoolTimeouts Redis 获取连接超时累计次数
	RedisPoolTimeouts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curriculumhub_redis_pool_timeouts",
			Help: "Redis 连接池获取连接超时累计次数",
		},
	)
)

// PoolCollector 连接池指标收集器，db 与 rdb 都可以为 nil
type PoolCollector struct {
	db       *sql.DB
	rdb      *redis.Client
	interval time.Duration
}

// NewPoolCollector 创建连接池指标收集器
func NewPoolCollector(db *sql.DB, rdb *redis.Client) *PoolCollector {
	return &PoolCollector{
		db:       db,
		rdb:      rdb,
		interval: defaultCollectInterval,
	}
}

// Start 定期收集，直到 ctx 结束
func (c *PoolCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.CollectOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CollectOnce()
		}
	}
}

// CollectOnce 收集一次
func (c *PoolCollector) CollectOnce() {
	if c.db != nil {
		stats := c.db.Stats()
		DBConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
		DBConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
		DBConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	}

	if c.rdb != nil {
		stats := c.rdb.PoolStats()
		RedisConnections.WithLabelValues("total").Set(float64(stats.TotalConns))
		RedisConnections.WithLabelValues("idle").Set(float64(stats.IdleConns))
		RedisConnections.WithLabelValues("stale").Set(float64(stats.StaleConns))
		RedisPoolTimeouts.Set(float64(stats.Timeouts))
	}
}
