package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// 模型存储后端
const (
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config 分诊服务配置
type Config struct {
	ServiceName string

	Database DatabaseConfig
	Redis    RedisConfig

	// 模型配置
	Model struct {
		Store      string // file / sqlite / postgres / redis
		Path       string // 文件存储路径
		SQLitePath string // SQLite 数据库路径
		RedisKey   string // Redis 存储键
		Dataset    string // 训练数据路径（.csv / .xlsx）
	}

	// 随机森林参数
	Forest struct {
		Trees    int
		MaxDepth int
		Seed     int64
		Folds    int // 交叉验证折数
	}

	// 评估结果输出
	Audit struct {
		Enabled bool // 写入 triage_assessments 表
	}
	Stream struct {
		Enabled bool   // 发布到 Redis Stream
		Name    string // 如 "triage:assessments"
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
// 若当前目录存在 .env 则先加载（不覆盖已有环境变量）
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	cfg.ServiceName = getEnv("SERVICE_NAME", "wisefido-triage")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	if cfg.Database.Port, err = getEnvInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "owlrd")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	cfg.Model.Store = strings.ToLower(getEnv("MODEL_STORE", StoreFile))
	switch cfg.Model.Store {
	case StoreFile, StoreSQLite, StorePostgres, StoreRedis:
	default:
		return nil, fmt.Errorf("invalid MODEL_STORE %q: must be file, sqlite, postgres or redis", cfg.Model.Store)
	}
	cfg.Model.Path = getEnv("MODEL_PATH", "fusion_model.json")
	cfg.Model.SQLitePath = getEnv("MODEL_SQLITE_PATH", "fusion_models.db")
	cfg.Model.RedisKey = getEnv("MODEL_REDIS_KEY", "triage:model:fusion")
	cfg.Model.Dataset = getEnv("DATASET_PATH", "data/sensor_training_data.csv")

	if cfg.Forest.Trees, err = getEnvInt("FOREST_TREES", 50); err != nil {
		return nil, err
	}
	if cfg.Forest.MaxDepth, err = getEnvInt("FOREST_MAX_DEPTH", 10); err != nil {
		return nil, err
	}
	seed, err := getEnvInt("FOREST_SEED", 42)
	if err != nil {
		return nil, err
	}
	cfg.Forest.Seed = int64(seed)
	if cfg.Forest.Folds, err = getEnvInt("CV_FOLDS", 5); err != nil {
		return nil, err
	}

	if cfg.Audit.Enabled, err = getEnvBool("AUDIT_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.Stream.Enabled, err = getEnvBool("STREAM_ENABLED", false); err != nil {
		return nil, err
	}
	cfg.Stream.Name = getEnv("STREAM_NAME", "triage:assessments")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}
