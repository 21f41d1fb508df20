package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Logger LoggerConfig `mapstructure:"logger"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Market MarketConfig `mapstructure:"market"`
	Limits LimitsConfig `mapstructure:"limits"`
}

type AppConfig struct {
	Port       string `mapstructure:"port"`
	Env        string `mapstructure:"env"` // e.g., "local", "prod"
	InstanceID string `mapstructure:"instance_id"`
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"` // "json" or "console"
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

type MarketConfig struct {
	Mode              string        `mapstructure:"mode"` // "full" or "hf"
	BroadcastInterval time.Duration `mapstructure:"broadcast_interval"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

type LimitsConfig struct {
	MessagesPerSecond int           `mapstructure:"messages_per_second"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	SweepGrace        time.Duration `mapstructure:"sweep_grace"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Load .env into the process environment first so viper sees the
	// variables like any other env var.
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.instance_id", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "price_facts")
	v.SetDefault("kafka.group_id", "quotestream-server")

	v.SetDefault("market.mode", "full")
	v.SetDefault("market.broadcast_interval", 1500*time.Millisecond)
	v.SetDefault("market.cache_ttl", 3*time.Second)

	v.SetDefault("limits.messages_per_second", 100)
	v.SetDefault("limits.sweep_interval", 10*time.Second)
	v.SetDefault("limits.sweep_grace", 5*time.Second)

	// Map dot-notation keys to underscore env vars (e.g. "app.port" -> "APP_PORT").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Viper only maps flat env vars into nested structs for explicitly bound keys.
	bindEnv(v, "app.port", "app.env", "app.instance_id")
	bindEnv(v, "logger.level", "logger.encoding")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id")
	bindEnv(v, "market.mode", "market.broadcast_interval", "market.cache_ttl")
	bindEnv(v, "limits.messages_per_second", "limits.sweep_interval", "limits.sweep_grace")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers cannot be empty")
	}
	if cfg.Market.Mode != "full" && cfg.Market.Mode != "hf" {
		return nil, fmt.Errorf("unknown market mode %q", cfg.Market.Mode)
	}

	if cfg.App.InstanceID == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "quotestream"
		}
		cfg.App.InstanceID = fmt.Sprintf("%s-%d", host, os.Getpid())
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
