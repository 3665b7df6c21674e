package infra

import (
	"fmt"
	"strings"
	"time"

	"curriculumhub/internal/config"
	"curriculumhub/internal/logger"
	"curriculumhub/pkg/types"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// ErrNoDatabase 未配置持久化连接
var ErrNoDatabase = fmt.Errorf("未配置数据库连接")

// InitDatabase 初始化数据库连接
// 未配置连接信息时返回 ErrNoDatabase，调用方应降级为仅本地日志
func InitDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	if !cfg.HasEndpoint() {
		return nil, ErrNoDatabase
	}

	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	// sslmode=disable 一般是本地环境，打开 SQL 明细日志
	logLevel := gormLogger.Warn
	if strings.EqualFold(cfg.SSLMode, "disable") {
		logLevel = gormLogger.Info
	}

	// 打开数据库连接
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(logLevel, defaultSlowThreshold),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	// 获取底层 *sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取 SQL DB 失败: %w", err)
	}

	// 设置连接池
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	logger.Info("数据库连接成功",
		zap.String("driver", driverName(cfg)),
		zap.String("host", cfg.Host),
		zap.String("database", cfg.DBName),
	)

	return db, nil
}

// openDialector 根据驱动类型选择 GORM 方言
func openDialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch driverName(cfg) {
	case "postgres":
		return postgres.Open(cfg.GetDSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.GetDSN()), nil
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s (可选: postgres, sqlite)", cfg.Driver)
	}
}

func driverName(cfg *config.DatabaseConfig) string {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "postgresql" {
		return "postgres"
	}
	return driver
}

// AutoMigrate 迁移 AI 记录表
func AutoMigrate(db *gorm.DB) error {
	logger.Info("开始执行数据库自动迁移")
	if err := db.AutoMigrate(&types.ErrorRecord{}, &types.AICallLog{}); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	logger.Info("数据库迁移完成")
	return nil
}

// CloseDatabase 关闭数据库连接
func CloseDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck 数据库健康检查
func HealthCheck(db *gorm.DB) error {
	if db == nil {
		return ErrNoDatabase
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
