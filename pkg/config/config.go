package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Universe struct {
		Symbols   []string `yaml:"symbols"`
		Benchmark string   `yaml:"benchmark"`
	} `yaml:"universe"`
	Engine struct {
		EpsilonUp          float64 `yaml:"epsilon_up"`
		EpsilonDown        float64 `yaml:"epsilon_down"`
		PriceBasis         string  `yaml:"price_basis"` // close or typical
		ConfirmBars        int     `yaml:"confirm_bars"`
		RequireAlternating bool    `yaml:"require_alternating"`
	} `yaml:"engine"`
	Run struct {
		Workers         int           `yaml:"workers"`
		Live            bool          `yaml:"live"`
		StoreRetryMax   int           `yaml:"store_retry_max"`
		StoreBackoffMin time.Duration `yaml:"store_backoff_min"`
		StoreBackoffMax time.Duration `yaml:"store_backoff_max"`
	} `yaml:"run"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		BarsTable        string        `yaml:"bars_table"`
		SignalsTable     string        `yaml:"signals_table"`
		ZonesTable       string        `yaml:"zones_table"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		SignalsTopic string   `yaml:"signals_topic"`
		BarsTopic    string   `yaml:"bars_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Universe.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("BENCHMARK"); v != "" {
		c.Universe.Benchmark = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Universe.Benchmark == "" {
		c.Universe.Benchmark = "SPY"
	}
	if c.Engine.PriceBasis == "" {
		c.Engine.PriceBasis = "close"
	}
	if c.Engine.ConfirmBars == 0 {
		c.Engine.ConfirmBars = 1
	}
	if c.Run.Workers == 0 {
		c.Run.Workers = 4
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "anchorpull"
	}
	if c.ClickHouse.BarsTable == "" {
		c.ClickHouse.BarsTable = "bars"
	}
	if c.ClickHouse.SignalsTable == "" {
		c.ClickHouse.SignalsTable = "signals"
	}
	if c.ClickHouse.ZonesTable == "" {
		c.ClickHouse.ZonesTable = "zone_history"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Universe.Symbols) == 0 {
		return fmt.Errorf("universe.symbols cannot be empty")
	}
	if c.Engine.PriceBasis != "close" && c.Engine.PriceBasis != "typical" {
		return fmt.Errorf("engine.price_basis must be 'close' or 'typical', got '%s'", c.Engine.PriceBasis)
	}
	if c.Engine.EpsilonUp < 0 || c.Engine.EpsilonDown < 0 {
		return fmt.Errorf("engine epsilons must be non-negative")
	}
	if c.Engine.ConfirmBars < 1 || c.Engine.ConfirmBars > 2 {
		return fmt.Errorf("engine.confirm_bars must be 1 or 2, got %d", c.Engine.ConfirmBars)
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	return nil
}
