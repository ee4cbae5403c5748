package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Lmstfy    LmstfyConfig    `mapstructure:"lmstfy"`
	Bus       DriverConfig    `mapstructure:"bus"`
	Queue     DriverConfig    `mapstructure:"queue"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Venue     VenueConfig     `mapstructure:"venue"`
	Live      LiveConfig      `mapstructure:"live"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"` // mysql | postgres | sqlite
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LmstfyConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
	Token     string `mapstructure:"token"`
	Queue     string `mapstructure:"queue"`
	TTL       uint32 `mapstructure:"ttl"`
	Tries     uint16 `mapstructure:"tries"`
}

// DriverConfig 可替换实现的选择（redis|memory，lmstfy|memory）
type DriverConfig struct {
	Driver string `mapstructure:"driver"`
}

type WorkerConfig struct {
	Embedded   bool             `mapstructure:"embedded"` // apiserver 进程内运行 worker
	Name       string           `mapstructure:"name"`
	Subscriber SubscriberConfig `mapstructure:"subscriber"`
	Processor  ProcessorConfig  `mapstructure:"processor"`
}

type SubscriberConfig struct {
	Threads      int           `mapstructure:"threads"`
	Rate         time.Duration `mapstructure:"rate"`
	Timeout      time.Duration `mapstructure:"timeout"`
	TTR          time.Duration `mapstructure:"ttr"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`
}

type ProcessorConfig struct {
	Threads    int           `mapstructure:"threads"`
	BufferSize int           `mapstructure:"buffer_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type VenueConfig struct {
	Names           []string      `mapstructure:"names"`
	BasePrice       float64       `mapstructure:"base_price"`
	Spread          float64       `mapstructure:"spread"`
	QuoteDelay      time.Duration `mapstructure:"quote_delay"`
	ExecuteDelayMin time.Duration `mapstructure:"execute_delay_min"`
	ExecuteDelayMax time.Duration `mapstructure:"execute_delay_max"`
	FailRate        float64       `mapstructure:"fail_rate"`
}

type LiveConfig struct {
	TerminalGrace time.Duration `mapstructure:"terminal_grace"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	PingInterval  time.Duration `mapstructure:"ping_interval"`
}

type ReconcileConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Schedule     string        `mapstructure:"schedule"`
	PendingAfter time.Duration `mapstructure:"pending_after"`
	BatchSize    int           `mapstructure:"batch_size"`
}

// EnvPrefix 环境变量前缀，server.port -> SWAPD_SERVER_PORT
const EnvPrefix = "SWAPD"

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "swapd")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.port", "8080")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:swapd.db?_busy_timeout=5000")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("lmstfy.host", "127.0.0.1")
	v.SetDefault("lmstfy.port", 7777)
	v.SetDefault("lmstfy.namespace", "swapd")
	v.SetDefault("lmstfy.token", "")
	v.SetDefault("lmstfy.queue", "swap_order")
	v.SetDefault("lmstfy.ttl", 3600)
	v.SetDefault("lmstfy.tries", 3)

	v.SetDefault("bus.driver", "memory")
	v.SetDefault("queue.driver", "memory")

	v.SetDefault("worker.embedded", true)
	v.SetDefault("worker.name", "swap_order")
	v.SetDefault("worker.subscriber.threads", 1)
	v.SetDefault("worker.subscriber.rate", "10ms")
	v.SetDefault("worker.subscriber.timeout", "1s")
	v.SetDefault("worker.subscriber.ttr", "60s")
	v.SetDefault("worker.subscriber.error_backoff", "1s")
	v.SetDefault("worker.processor.threads", 10)
	v.SetDefault("worker.processor.buffer_size", 10)
	v.SetDefault("worker.processor.timeout", "30s")

	v.SetDefault("venue.names", []string{"raydium", "meteora"})
	v.SetDefault("venue.base_price", 100.0)
	v.SetDefault("venue.spread", 0.02)
	v.SetDefault("venue.quote_delay", "200ms")
	v.SetDefault("venue.execute_delay_min", "2s")
	v.SetDefault("venue.execute_delay_max", "3s")
	v.SetDefault("venue.fail_rate", 0.0)

	v.SetDefault("live.terminal_grace", "500ms")
	v.SetDefault("live.write_timeout", "5s")
	v.SetDefault("live.ping_interval", "30s")

	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.schedule", "@every 30s")
	v.SetDefault("reconcile.pending_after", "2m")
	v.SetDefault("reconcile.batch_size", 100)
}

// Load 从配置文件加载配置；configPath 为空时只使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置完整性
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}

	switch c.Bus.Driver {
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for redis bus")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported bus driver: %q", c.Bus.Driver)
	}

	switch c.Queue.Driver {
	case "lmstfy":
		if c.Lmstfy.Host == "" || c.Lmstfy.Port == 0 {
			return fmt.Errorf("lmstfy host and port are required for lmstfy queue")
		}
		if c.Lmstfy.Token == "" {
			return fmt.Errorf("lmstfy token is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported queue driver: %q", c.Queue.Driver)
	}
	if c.Lmstfy.Queue == "" {
		return fmt.Errorf("lmstfy queue name is required")
	}

	// 进程内实现只能在同一进程内连通 API 和 worker
	if (c.Bus.Driver == "memory" || c.Queue.Driver == "memory") && !c.Worker.Embedded {
		return fmt.Errorf("memory bus/queue drivers require worker.embedded=true")
	}

	if c.Worker.Processor.Threads <= 0 {
		return fmt.Errorf("worker.processor.threads must be positive")
	}
	if c.Worker.Subscriber.Threads <= 0 {
		return fmt.Errorf("worker.subscriber.threads must be positive")
	}
	if c.Worker.Processor.Timeout <= c.Venue.ExecuteDelayMax {
		return fmt.Errorf("worker.processor.timeout must exceed venue.execute_delay_max")
	}
	if len(c.Venue.Names) == 0 {
		return fmt.Errorf("at least one venue is required")
	}
	if c.Venue.FailRate < 0 || c.Venue.FailRate > 1 {
		return fmt.Errorf("venue.fail_rate must be within [0,1]")
	}
	if c.Reconcile.Enabled && c.Reconcile.Schedule == "" {
		return fmt.Errorf("reconcile.schedule is required when reconcile is enabled")
	}
	return nil
}
