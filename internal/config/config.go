package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
	AI          AIConfig          `mapstructure:"ai"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Auth        AuthConfig        `mapstructure:"auth"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	DSN             string `mapstructure:"dsn"`    // 完整连接串，优先于 host 等字段
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`      // 是否自动迁移表结构
}

// RedisConfig Redis 配置（可选，用于诊断结果冷却缓存）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"` // host:port，为空表示不启用
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// AIConfig 生成式文本后端配置
type AIConfig struct {
	Provider       string `mapstructure:"provider"` // openai, deepseek, qwen, ollama, custom
	APIKey         string `mapstructure:"api_key"`
	APIKeyEnv      string `mapstructure:"api_key_env"` // api_key 为空时读取的环境变量名
	BaseURL        string `mapstructure:"base_url"`
	OrgID          string `mapstructure:"org_id"`
	Model          string `mapstructure:"model"`
	MaxRetries     int    `mapstructure:"max_retries"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // 单次调用超时
	BaseDelayMs    int    `mapstructure:"base_delay_ms"`   // 退避基础延迟
	MaxDelayMs     int    `mapstructure:"max_delay_ms"`    // 退避上限
}

// DiagnosticsConfig 诊断配置
type DiagnosticsConfig struct {
	ProbeTimeoutSeconds           int  `mapstructure:"probe_timeout_seconds"`
	ImplementationCooldownSeconds int  `mapstructure:"implementation_cooldown_seconds"` // 0 表示每次都真实调用
	LogFailures                   bool `mapstructure:"log_failures"`
}

// AuthConfig 运维接口鉴权配置
type AuthConfig struct {
	OperatorSecret string `mapstructure:"operator_secret"` // 为空时不校验
	Issuer         string `mapstructure:"issuer"`
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 120)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.org_id", "")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.max_retries", 3)
	v.SetDefault("ai.timeout_seconds", 30)
	v.SetDefault("ai.base_delay_ms", 500)
	v.SetDefault("ai.max_delay_ms", 8000)

	v.SetDefault("diagnostics.probe_timeout_seconds", 10)
	v.SetDefault("diagnostics.implementation_cooldown_seconds", 300)
	v.SetDefault("diagnostics.log_failures", true)

	v.SetDefault("auth.operator_secret", "")
	v.SetDefault("auth.issuer", "curriculumhub")
}

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
// 配置文件缺失不算错误，此时只使用默认值和环境变量
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// 设置配置文件名和路径
	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP") // 环境变量前缀：APP_
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_DATABASE_DSN

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	return &cfg, nil
}

// HasEndpoint 是否配置了持久化连接信息（只判断存在性，不建立连接）
func (c *DatabaseConfig) HasEndpoint() bool {
	return strings.TrimSpace(c.DSN) != "" || strings.TrimSpace(c.Host) != ""
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	if dsn := strings.TrimSpace(c.DSN); dsn != "" {
		return dsn
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
