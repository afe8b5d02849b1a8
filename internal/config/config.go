package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 占位盐值，禁止在生产环境使用
const placeholderSalt = "default_salt_change_me"

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// TripcodeConfig 定义 tripcode 签名方案的配置
type TripcodeConfig struct {
	Salt string // 服务端全局盐值，必填且不能是占位值
}

// InboxConfig 定义收件箱服务的核心业务配置
type InboxConfig struct {
	DefaultPageSize int           // 分页默认页大小，默认 20
	MaxPageSize     int           // 分页最大页大小，默认 100
	PurgeInterval   time.Duration // 过期收件箱清理任务的执行间隔，默认 1h
	PurgeRetention  time.Duration // 过期后继续保留的时长，默认 720h（30 天）
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Enabled  bool          // 是否启用元数据缓存，默认 false
	Address  string        // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string        // Redis 认证密码，留空表示无密码
	DB       int           // Redis 数据库编号，默认 0
	CacheTTL time.Duration // 收件箱元数据缓存时长，默认 30s
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig   // HTTP 服务器配置
	Tripcode TripcodeConfig // tripcode 签名配置
	Inbox    InboxConfig    // 收件箱服务配置
	CORS     CORSConfig     // 跨域配置
	Log      LogConfig      // 日志配置
	Database DatabaseConfig // 数据库配置
	Redis    RedisConfig    // Redis 配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: FEEDBOX_
// 例如: FEEDBOX_SERVER_HOST, FEEDBOX_TRIPCODE_SALT
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("feedbox")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("tripcode.salt", "")
	viper.SetDefault("inbox.default_page_size", 20)
	viper.SetDefault("inbox.max_page_size", 100)
	viper.SetDefault("inbox.purge_interval", "1h")
	viper.SetDefault("inbox.purge_retention", "720h")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.cache_ttl", "30s")

	// 安全检查：盐值必须显式配置
	salt := viper.GetString("tripcode.salt")
	if salt == "" {
		return nil, fmt.Errorf("SECURITY ERROR: tripcode salt must be set. Please set FEEDBOX_TRIPCODE_SALT environment variable")
	}
	if salt == placeholderSalt {
		return nil, fmt.Errorf("SECURITY ERROR: tripcode salt cannot be the placeholder value")
	}
	if len(salt) < 8 {
		return nil, fmt.Errorf("SECURITY ERROR: tripcode salt must be at least 8 characters long")
	}

	defaultPageSize := viper.GetInt("inbox.default_page_size")
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	maxPageSize := viper.GetInt("inbox.max_page_size")
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	if defaultPageSize > maxPageSize {
		return nil, fmt.Errorf("inbox.default_page_size must not exceed inbox.max_page_size")
	}

	purgeInterval, err := time.ParseDuration(viper.GetString("inbox.purge_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid inbox.purge_interval: %w", err)
	}
	purgeRetention, err := time.ParseDuration(viper.GetString("inbox.purge_retention"))
	if err != nil {
		return nil, fmt.Errorf("invalid inbox.purge_retention: %w", err)
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	cacheTTL, err := time.ParseDuration(viper.GetString("redis.cache_ttl"))
	if err != nil {
		cacheTTL = 30 * time.Second
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Tripcode: TripcodeConfig{
			Salt: salt,
		},
		Inbox: InboxConfig{
			DefaultPageSize: defaultPageSize,
			MaxPageSize:     maxPageSize,
			PurgeInterval:   purgeInterval,
			PurgeRetention:  purgeRetention,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			CacheTTL: cacheTTL,
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
