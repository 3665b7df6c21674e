package infra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	gormLogger "gorm.io/gorm/logger"
)

func TestClassifyQuery(t *testing.T) {
	slow := 100 * time.Millisecond

	assert.Equal(t, "ok", classifyQuery(nil, time.Millisecond, slow))
	assert.Equal(t, "slow", classifyQuery(nil, time.Second, slow))
	assert.Equal(t, "error", classifyQuery(errors.New("boom"), time.Millisecond, slow))
	assert.Equal(t, "ok", classifyQuery(gormLogger.ErrRecordNotFound, time.Millisecond, slow))
}

func TestGormLoggerLogModeCopies(t *testing.T) {
	l := NewGormLogger(gormLogger.Warn, 0)
	assert.Equal(t, defaultSlowThreshold, l.slowThreshold)

	silent := l.LogMode(gormLogger.Silent).(*GormZapLogger)
	assert.Equal(t, gormLogger.Silent, silent.level)
	assert.Equal(t, gormLogger.Warn, l.level)
}
