package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the pipeline binaries.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Processor  ProcessorConfig  `mapstructure:"processor"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Producer   ProducerConfig   `mapstructure:"producer"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level string `mapstructure:"level"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type ProcessorConfig struct {
	NumWorkers int `mapstructure:"num_workers"`
	BatchSize  int `mapstructure:"batch_size"`
}

type AggregatorConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	IntervalLabel string        `mapstructure:"interval_label"`
	Lateness      time.Duration `mapstructure:"lateness"`
}

type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type StreamConfig struct {
	DefaultEvents int           `mapstructure:"default_events"`
	MaxEvents     int           `mapstructure:"max_events"`
	DefaultDelay  time.Duration `mapstructure:"default_delay"`
	RateLimitRPS  float64       `mapstructure:"rate_limit_rps"`
	RateBurst     int           `mapstructure:"rate_burst"`
}

type ProducerConfig struct {
	Symbols []string      `mapstructure:"symbols"`
	Period  time.Duration `mapstructure:"period"`
	Source  string        `mapstructure:"source"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Load .env into the process environment first so viper can see the vars
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "prices.ticks")
	v.SetDefault("kafka.group_id", "flowdex-processor-group")

	v.SetDefault("processor.num_workers", 4)
	v.SetDefault("processor.batch_size", 64)

	v.SetDefault("aggregator.interval", "1m")
	v.SetDefault("aggregator.interval_label", "1m")
	v.SetDefault("aggregator.lateness", "2m")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.path", "flowdex-candles.db")

	v.SetDefault("stream.default_events", 5)
	v.SetDefault("stream.max_events", 20)
	v.SetDefault("stream.default_delay", "100ms")
	v.SetDefault("stream.rate_limit_rps", 1)
	v.SetDefault("stream.rate_burst", 5)

	v.SetDefault("producer.symbols", []string{"BTC", "ETH", "SOL", "AVAX"})
	v.SetDefault("producer.period", "1s")
	v.SetDefault("producer.source", "flowdex-demo")

	// Map dot-notation keys to underscore env vars (aggregator.lateness -> AGGREGATOR_LATENESS)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Viper needs explicit bindings to map flat env vars onto nested structs
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id")
	bindEnv(v, "processor.num_workers", "processor.batch_size")
	bindEnv(v, "aggregator.interval", "aggregator.interval_label", "aggregator.lateness")
	bindEnv(v, "archive.enabled", "archive.path")
	bindEnv(v, "stream.default_events", "stream.max_events", "stream.default_delay",
		"stream.rate_limit_rps", "stream.rate_burst")
	bindEnv(v, "producer.symbols", "producer.period", "producer.source")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}
	if cfg.Processor.NumWorkers <= 0 {
		return nil, fmt.Errorf("processor num_workers must be positive")
	}
	if cfg.Aggregator.Interval <= 0 {
		return nil, fmt.Errorf("aggregator interval must be positive")
	}
	if cfg.Aggregator.Lateness < 0 {
		return nil, fmt.Errorf("aggregator lateness cannot be negative")
	}

	return &cfg, nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
