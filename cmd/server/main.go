package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"curriculumhub/api"
	"curriculumhub/internal/ai"
	"curriculumhub/internal/auth"
	"curriculumhub/internal/config"
	"curriculumhub/internal/diagnostics"
	"curriculumhub/internal/infra"
	"curriculumhub/internal/logger"
	"curriculumhub/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 0. 统一加载 .env，便于集中管理 APP_* 环境变量
	loadEnvFile()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 1. 加载配置
	cfg, err := config.Load(env, "")
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.String("env", env),
		zap.String("mode", cfg.Server.Mode),
	)

	// 3. 初始化数据库（可选）
	db := initDatabase(cfg)

	// 4. 初始化 Redis（可选）
	redisClient, err := infra.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Warn("Redis 不可用，诊断冷却缓存退回进程内实现", zap.Error(err))
		redisClient = nil
	}

	// 5. 组装 AI 组件
	var sink ai.ErrorSink
	var callLogger ai.ModelCallLogger
	if db != nil {
		dbLogger := ai.NewDBLogger(db)
		sink = dbLogger
		callLogger = dbLogger
	}
	errLogger := ai.NewErrorLogger(sink)

	clientOpts := []ai.Option{
		ai.WithErrorLogger(errLogger),
		ai.WithPerformanceMonitor(ai.NewPerformanceMonitor()),
	}
	if callLogger != nil {
		clientOpts = append(clientOpts, ai.WithCallLogger(callLogger))
	}
	client := ai.NewResilientClient(settingsFromConfig(&cfg.AI), clientOpts...)

	diagCfg := diagnostics.Config{
		ProbeTimeout:           time.Duration(cfg.Diagnostics.ProbeTimeoutSeconds) * time.Second,
		ImplementationCooldown: time.Duration(cfg.Diagnostics.ImplementationCooldownSeconds) * time.Second,
		LogFailures:            cfg.Diagnostics.LogFailures,
	}
	runner := diagnostics.NewRunner(client, diagCfg,
		diagnostics.WithErrorLogger(errLogger),
		diagnostics.WithResultCache(newResultCache(redisClient)),
		diagnostics.WithStorageCheck(cfg.Database.HasEndpoint),
	)

	// 6. 连接池指标
	collectCtx, stopCollector := context.WithCancel(context.Background())
	defer stopCollector()
	go metrics.NewPoolCollector(sqlDBOf(db), redisClient).Start(collectCtx)

	// 7. 设置 Gin 模式并创建路由
	gin.SetMode(cfg.Server.Mode)
	router := api.SetupRouter(api.Dependencies{
		DB:          db,
		Generator:   client,
		Diagnostics: runner,
		JWT:         auth.NewJWTService(cfg.Auth.OperatorSecret, cfg.Auth.Issuer),
	})

	// 8. 创建 HTTP 服务器
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器启动失败", zap.Error(err))
		}
	}()

	// 9. 优雅关闭
	gracefulShutdown(server, errLogger, client, db, redisClient)
}

// loadEnvFile 依次尝试加载当前目录及上级目录的 .env 文件
func loadEnvFile() {
	if path := resolveEnvPath(); path != "" {
		if err := godotenv.Load(path); err != nil {
			fmt.Printf("加载环境变量文件 %s 失败: %v\n", path, err)
		} else {
			fmt.Printf("已加载环境变量文件: %s\n", path)
		}
	} else {
		fmt.Println("未找到 .env 文件，将仅使用系统环境变量和 config/* 配置")
	}
}

// resolveEnvPath 尝试从当前工作目录、可执行文件目录向上查找根目录 .env
func resolveEnvPath() string {
	candidates := collectEnvCandidates()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func collectEnvCandidates() []string {
	seen := make(map[string]struct{})
	var candidates []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		candidates = append(candidates, path)
	}

	traverse := func(start string) {
		dir := filepath.Clean(start)
		for i := 0; i < 8; i++ {
			if dir == "" || dir == string(filepath.Separator) || dir == "." {
				break
			}
			add(filepath.Join(dir, ".env"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if wd, err := os.Getwd(); err == nil {
		traverse(wd)
	}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		traverse(exeDir)
	}

	return candidates
}

// initDatabase 连接数据库并迁移，未配置或连接失败时返回 nil
func initDatabase(cfg *config.Config) *gorm.DB {
	db, err := infra.InitDatabase(&cfg.Database)
	if errors.Is(err, infra.ErrNoDatabase) {
		logger.Info("未配置数据库，错误记录与调用日志只写本地日志")
		return nil
	}
	if err != nil {
		logger.Error("初始化数据库失败，降级为仅本地日志", zap.Error(err))
		return nil
	}

	if !cfg.Database.AutoMigrate {
		logger.Info("跳过自动迁移（配置已禁用）")
		return db
	}
	if err := infra.AutoMigrate(db); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}
	return db
}

// sqlDBOf 取底层连接池，未配置数据库时返回 nil
func sqlDBOf(db *gorm.DB) *sql.DB {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil
	}
	return sqlDB
}

// settingsFromConfig 把配置转换为生成客户端设置
func settingsFromConfig(cfg *config.AIConfig) ai.Settings {
	return ai.Settings{
		Provider:   cfg.Provider,
		APIKey:     cfg.APIKey,
		APIKeyEnv:  cfg.APIKeyEnv,
		BaseURL:    cfg.BaseURL,
		OrgID:      cfg.OrgID,
		Model:      cfg.Model,
		MaxRetries: cfg.MaxRetries,
		Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		BaseDelay:  time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		MaxDelay:   time.Duration(cfg.MaxDelayMs) * time.Millisecond,
	}
}

// newResultCache Redis 可用时共享冷却结果，否则使用进程内缓存
func newResultCache(redisClient *redis.Client) diagnostics.ResultCache {
	if redisClient != nil {
		return diagnostics.NewRedisResultCache(redisClient)
	}
	return diagnostics.NewMemoryResultCache()
}

// gracefulShutdown 优雅关闭
// 先停止接收请求，再等待异步错误记录写完，最后关闭连接
func gracefulShutdown(server *http.Server, errLogger *ai.ErrorLogger, client *ai.ResilientClient, db *gorm.DB, redisClient *redis.Client) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	if err := client.Close(); err != nil {
		logger.Error("AI 客户端关闭异常", zap.Error(err))
	}

	if err := errLogger.Wait(ctx); err != nil {
		logger.Warn("等待错误记录写入超时", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis 关闭异常", zap.Error(err))
		}
	}

	if err := infra.CloseDatabase(db); err != nil {
		logger.Error("数据库关闭异常", zap.Error(err))
	}

	logger.Info("服务器已安全关闭")
}
