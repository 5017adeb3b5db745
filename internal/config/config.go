package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	Realtime RealtimeConfig
	Sweep    SweepConfig
	DB       DatabaseConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	RateLimitRPS int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type RealtimeConfig struct {
	// ConnSendBuffer is the per-connection outbound buffer; a subscriber
	// that falls this far behind is dropped.
	ConnSendBuffer  int
	ChannelCapacity int
}

type SweepConfig struct {
	Interval time.Duration
	// Grace is how long past its scheduled time a pending check-in may stay
	// unanswered before it is marked missed.
	Grace time.Duration
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS: getEnvInt("RATE_LIMIT_RPS", 20),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		Realtime: RealtimeConfig{
			ConnSendBuffer:  getEnvInt("CONN_SEND_BUFFER", 64),
			ChannelCapacity: getEnvInt("CHANNEL_CAPACITY", 100),
		},
		Sweep: SweepConfig{
			Interval: getEnvDuration("SWEEP_INTERVAL", time.Minute),
			Grace:    getEnvDuration("MISSED_GRACE", 30*time.Minute),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/crisis-alerts.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.Realtime.ConnSendBuffer < 1 {
		return fmt.Errorf("connection send buffer must be at least 1")
	}
	if c.Realtime.ChannelCapacity < 1 {
		return fmt.Errorf("channel capacity must be at least 1")
	}
	if c.Sweep.Interval < time.Second {
		return fmt.Errorf("sweep interval must be at least 1 second")
	}
	if c.Sweep.Grace < 0 {
		return fmt.Errorf("missed grace must not be negative")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
