package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger  *zap.Logger
	callerSkipped *zap.Logger // 包级便捷方法使用，跳过一层调用栈
	mu            sync.RWMutex
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// Init 初始化全局日志
// outputPath 支持逗号分隔的多个输出，例如 "stdout,/var/log/curriculumhub.log"
func Init(level, format, outputPath string) error {
	l, err := New(level, format, outputPath)
	if err != nil {
		return err
	}
	mu.Lock()
	globalLogger = l
	callerSkipped = l.WithOptions(zap.AddCallerSkip(1))
	mu.Unlock()
	return nil
}

// New 按配置构建 Logger，不修改全局实例
func New(level, format, outputPath string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	encoder := newEncoder(format)

	var cores []zapcore.Core
	for _, path := range splitOutputs(outputPath) {
		writer, err := openWriter(path)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder, writer, zapLevel))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func newEncoder(format string) zapcore.Encoder {
	if format == "json" {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func splitOutputs(outputPath string) []string {
	var outputs []string
	for _, p := range strings.Split(outputPath, ",") {
		if p = strings.TrimSpace(p); p != "" {
			outputs = append(outputs, p)
		}
	}
	if len(outputs) == 0 {
		return []string{"stdout"}
	}
	return outputs
}

func openWriter(path string) (zapcore.WriteSyncer, error) {
	switch path {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	return zapcore.AddSync(file), nil
}

// Get 获取全局 Logger
// 未初始化时返回 Nop Logger，库代码和测试无需先调用 Init
func Get() *zap.Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func skipped() *zap.Logger {
	mu.RLock()
	l := callerSkipped
	mu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Named 获取带组件名的 Logger
func Named(component string) *zap.Logger {
	return Get().With(zap.String("component", component))
}

// WithTraceID 创建带 TraceID 的上下文
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID 从上下文获取 TraceID
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithContext 创建带 trace_id 的 Logger
func WithContext(ctx context.Context) *zap.Logger {
	return Trace(ctx, Get())
}

// Trace 给指定 Logger 附加上下文中的 trace_id
func Trace(ctx context.Context, l *zap.Logger) *zap.Logger {
	if traceID := GetTraceID(ctx); traceID != "" {
		return l.With(zap.String("trace_id", traceID))
	}
	return l
}

// Debug 便捷方法
func Debug(msg string, fields ...zap.Field) { skipped().Debug(msg, fields...) }

// Info 便捷方法
func Info(msg string, fields ...zap.Field) { skipped().Info(msg, fields...) }

// Warn 便捷方法
func Warn(msg string, fields ...zap.Field) { skipped().Warn(msg, fields...) }

// Error 便捷方法
func Error(msg string, fields ...zap.Field) { skipped().Error(msg, fields...) }

// Fatal 便捷方法
func Fatal(msg string, fields ...zap.Field) { skipped().Fatal(msg, fields...) }

// Sync 刷新日志缓冲区
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
