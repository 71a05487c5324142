// 文件: pkg/config/config.go
// 环境变量配置, 前缀 RAIDHUB_
//
// 启动时先尝试加载工作目录下的 .env (不存在时忽略), 已有的环境变量优先

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const prefix = "raidhub"

// 存储后端
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// 投递方式
const (
	NotifyLog   = "log"
	NotifyNats  = "nats"
	NotifyKafka = "kafka"
)

// Config 进程配置
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error

	Store    string `envconfig:"STORE" default:"mysql"` // mysql|memory
	MySQLDSN string `envconfig:"MYSQL_DSN" default:"root:123456@tcp(127.0.0.1:3307)/raidhub?charset=utf8mb4&parseTime=True&loc=UTC"`

	// 为空时不启用 Redis 索引, 轮询直接查数据库
	RedisAddr string `envconfig:"REDIS_ADDR" default:""`

	Notify       string   `envconfig:"NOTIFY" default:"log"` // log|nats|kafka
	NatsURL      string   `envconfig:"NATS_URL" default:"nats://127.0.0.1:4222"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"127.0.0.1:9092"`

	BotAPIKey string `envconfig:"BOT_API_KEY" required:"true"`

	// 服务器目录 JSON, 为空时无法解析任何投递目标
	GuildsFile string `envconfig:"GUILDS_FILE" default:""`

	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"20s"`
	PollMaxCatchUp  time.Duration `envconfig:"POLL_MAX_CATCHUP" default:"15m"`
	PollQuarterOnly bool          `envconfig:"POLL_QUARTER_ONLY" default:"true"`

	SnowflakeNode int64 `envconfig:"SNOWFLAKE_NODE" default:"1"`
}

// Load 读取 .env 和环境变量
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv 只读取环境变量
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate 检查枚举值和依赖项
func (c *Config) Validate() error {
	if c.BotAPIKey == "" {
		return errors.New("RAIDHUB_BOT_API_KEY must not be empty")
	}

	switch c.Store {
	case StoreMySQL:
		if c.MySQLDSN == "" {
			return errors.New("RAIDHUB_MYSQL_DSN is required for mysql store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}

	switch c.Notify {
	case NotifyLog:
	case NotifyNats:
		if c.NatsURL == "" {
			return errors.New("RAIDHUB_NATS_URL is required for nats notify")
		}
	case NotifyKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("RAIDHUB_KAFKA_BROKERS is required for kafka notify")
		}
	default:
		return fmt.Errorf("unknown notify mode %q", c.Notify)
	}

	if c.PollInterval <= 0 || c.PollInterval > time.Minute {
		return fmt.Errorf("poll interval must be in (0, 1m], got %s", c.PollInterval)
	}
	if c.PollMaxCatchUp < 0 {
		return fmt.Errorf("poll catch-up must not be negative, got %s", c.PollMaxCatchUp)
	}
	if c.SnowflakeNode < 0 || c.SnowflakeNode > 1023 {
		return fmt.Errorf("snowflake node must be in [0, 1023], got %d", c.SnowflakeNode)
	}
	return nil
}
