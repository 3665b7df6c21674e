package ai

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"curriculumhub/internal/logger"
	"curriculumhub/internal/metrics"

	"go.uber.org/zap"
)

const (
	defaultPersistTimeout = 5 * time.Second
	maxStackBytes         = 4096
)

// ErrorSink 错误记录持久化接口
type ErrorSink interface {
	SaveError(ctx context.Context, record *ErrorRecord) error
}

// ErrorHandler 绑定组件名的错误处理函数
type ErrorHandler func(err error) *ErrorRecord

// ErrorLogger 错误分类记录器
// 持久化失败只记本地日志，绝不影响调用方
type ErrorLogger struct {
	sink    ErrorSink
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewErrorLogger 创建错误记录器，sink 为 nil 时只写本地日志
func NewErrorLogger(sink ErrorSink) *ErrorLogger {
	return &ErrorLogger{
		sink:    sink,
		log:     logger.Named("ai.errors"),
		timeout: defaultPersistTimeout,
	}
}

// Persist 同步写入错误记录（尽力而为）
func (l *ErrorLogger) Persist(ctx context.Context, record *ErrorRecord) {
	if l == nil || record == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_id", record.ID),
		zap.String("kind", string(record.Kind)),
		zap.String("component", record.Component),
		zap.String("message", record.Message),
	}
	if record.HTTPStatus != nil {
		fields = append(fields, zap.Int("http_status", *record.HTTPStatus))
	}
	l.log.Warn("AI 调用错误", fields...)

	if l.sink == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.ErrorPersistFailuresTotal.Inc()
			l.log.Error("错误记录写入 panic", zap.String("error_id", record.ID), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.sink.SaveError(ctx, record); err != nil {
		metrics.ErrorPersistFailuresTotal.Inc()
		l.log.Error("错误记录写入失败", zap.String("error_id", record.ID), zap.Error(err))
	}
}

// PersistAsync 异步写入错误记录，不阻塞调用方
func (l *ErrorLogger) PersistAsync(record *ErrorRecord) {
	if l == nil || record == nil {
		return
	}
	cp := *record
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.Persist(context.Background(), &cp)
	}()
}

// MakeHandler 返回绑定组件名的处理函数：分类、异步持久化、返回记录
func (l *ErrorLogger) MakeHandler(component string) ErrorHandler {
	return func(err error) *ErrorRecord {
		record := Classify(NormalizeError(err), component)
		record.Stack = captureStack()
		metrics.ClassifiedErrorsTotal.WithLabelValues(string(record.Kind), component).Inc()
		l.PersistAsync(record)
		return record
	}
}

// Wait 等待所有异步写入完成，用于优雅关闭
func (l *ErrorLogger) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("等待错误记录写入超时: %w", ctx.Err())
	}
}

// captureStack 截取调用栈
func captureStack() string {
	stack := debug.Stack()
	if len(stack) > maxStackBytes {
		stack = stack[:maxStackBytes]
	}
	return string(stack)
}
