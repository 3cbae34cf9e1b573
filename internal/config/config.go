package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the gateway.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Downstream  DownstreamConfig
	Health      HealthConfig
	AccessLog   AccessLogConfig
	Journal     JournalConfig
	Redis       RedisConfig
	Context     ContextConfig
	Logger      LoggerConfig
}

type HTTPConfig struct {
	Host          string
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	EnablePprof   bool
	EnableMetrics bool
}

type DownstreamConfig struct {
	BaseURL  string
	Timeout  time.Duration
	MaxConns int
}

type HealthConfig struct {
	Schedule        string
	TickTimeout     time.Duration
	ToleratedStates []string
	RunOnStart      bool
	LeaseTTL        time.Duration
}

type AccessLogConfig struct {
	Dir  string
	File string
}

type JournalConfig struct {
	Path           string
	RetentionHours int
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	// Timeout bounds dialing, each command and the startup ping.
	Timeout time.Duration
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults matching the bot deployment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "botgateway"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:          getString("SERVER_HOST", "0.0.0.0"),
			Port:          getString("PORT", getString("SERVER_PORT", "3000")),
			ReadTimeout:   getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:   getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			EnablePprof:   getBool("SERVER_ENABLE_PPROF", false),
			EnableMetrics: getBool("SERVER_ENABLE_METRICS", true),
		},
		Downstream: DownstreamConfig{
			BaseURL:  strings.TrimRight(getString("BOT_SERVICE_URL", "http://bot:5000"), "/"),
			Timeout:  getDuration("DOWNSTREAM_TIMEOUT", 5*time.Second),
			MaxConns: getInt("DOWNSTREAM_MAX_CONNS", 64),
		},
		Health: HealthConfig{
			Schedule:        getString("HEALTH_SCHEDULE", "0 * * * *"),
			TickTimeout:     getDuration("HEALTH_TICK_TIMEOUT", 30*time.Second),
			ToleratedStates: getList("HEALTH_TOLERATED_STATES", []string{"running"}),
			RunOnStart:      getBool("HEALTH_RUN_ON_START", false),
			LeaseTTL:        getDuration("HEALTH_LEASE_TTL", 5*time.Minute),
		},
		AccessLog: AccessLogConfig{
			Dir:  getString("ACCESS_LOG_DIR", "logs"),
			File: getString("ACCESS_LOG_FILE", "access.log"),
		},
		Journal: JournalConfig{
			Path:           getString("JOURNAL_PATH", "./data/ticks.db"),
			RetentionHours: getInt("JOURNAL_RETENTION_HOURS", 168),
		},
		Redis: RedisConfig{
			URL:      os.Getenv("REDIS_URL"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
			Timeout:  getDuration("REDIS_TIMEOUT", 2*time.Second),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 10*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.Downstream.BaseURL)
	if err != nil {
		return fmt.Errorf("config: BOT_SERVICE_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("config: BOT_SERVICE_URL must be an absolute http(s) url, got %q", c.Downstream.BaseURL)
	}
	if c.Downstream.Timeout <= 0 {
		return errors.New("config: DOWNSTREAM_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(c.Health.Schedule) == "" {
		return errors.New("config: HEALTH_SCHEDULE required")
	}
	if len(c.Health.ToleratedStates) == 0 {
		return errors.New("config: HEALTH_TOLERATED_STATES must name at least one state")
	}
	return nil
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}

// AccessLogPath is the file the access logger appends to.
func (c *Config) AccessLogPath() string {
	return filepath.Join(c.AccessLog.Dir, c.AccessLog.File)
}

// JournalRetention is how long tick reports are kept.
func (c *Config) JournalRetention() time.Duration {
	if c.Journal.RetentionHours <= 0 {
		return 0
	}
	return time.Duration(c.Journal.RetentionHours) * time.Hour
}
