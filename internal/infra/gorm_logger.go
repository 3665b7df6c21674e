package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"curriculumhub/internal/logger"
	"curriculumhub/internal/metrics"

	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"
)

const defaultSlowThreshold = 200 * time.Millisecond

// GormZapLogger 把 GORM 日志写入 zap，并统计 SQL 执行结果
// 记录不存在不视为错误，调用方自行处理
type GormZapLogger struct {
	log           *zap.Logger
	level         gormLogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger 创建 GORM 日志适配器
func NewGormLogger(level gormLogger.LogLevel, slowThreshold time.Duration) *GormZapLogger {
	if slowThreshold <= 0 {
		slowThreshold = defaultSlowThreshold
	}
	return &GormZapLogger{
		log:           logger.Named("gorm"),
		level:         level,
		slowThreshold: slowThreshold,
	}
}

// LogMode 返回指定级别的副本
func (l *GormZapLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *GormZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Info {
		logger.Trace(ctx, l.log).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *GormZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Warn {
		logger.Trace(ctx, l.log).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *GormZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Error {
		logger.Trace(ctx, l.log).Error(fmt.Sprintf(msg, data...))
	}
}

// Trace 每条 SQL 执行后调用
func (l *GormZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	result := classifyQuery(err, elapsed, l.slowThreshold)
	metrics.DBQueriesTotal.WithLabelValues(result).Inc()

	if l.level <= gormLogger.Silent {
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}
	zl := logger.Trace(ctx, l.log)

	switch result {
	case "error":
		zl.Error("SQL 执行错误", append(fields, zap.Error(err))...)
	case "slow":
		zl.Warn("SQL 慢查询", fields...)
	default:
		if l.level >= gormLogger.Info {
			zl.Debug("SQL 执行", fields...)
		}
	}
}

func classifyQuery(err error, elapsed, slowThreshold time.Duration) string {
	switch {
	case err != nil && !errors.Is(err, gormLogger.ErrRecordNotFound):
		return "error"
	case elapsed > slowThreshold:
		return "slow"
	default:
		return "ok"
	}
}
