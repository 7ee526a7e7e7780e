package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Gmail
	GmailTokenFile string
	GmailUser      string
	CallTimeout    time.Duration

	// Mail behaviour
	SnoozeLabel  string
	SendLocation *time.Location

	// Scheduler
	NodeID             int64
	SchedulerWorkers   int
	SchedulerRetention time.Duration

	// Redis (optional job snapshot)
	RedisURL string

	// HTTP
	AllowedOrigins  []string
	RateLimitPerMin int
}

func Load() (*Config, error) {
	loc, err := loadLocation(getEnv("SEND_TIME_ZONE", "Local"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),

		GmailTokenFile: getEnv("GMAIL_TOKEN_FILE", "token.json"),
		GmailUser:      getEnv("GMAIL_USER", "me"),
		CallTimeout:    time.Duration(getEnvInt("CALL_TIMEOUT_SEC", 30)) * time.Second,

		SnoozeLabel:  getEnv("SNOOZE_LABEL", "Snoozed"),
		SendLocation: loc,

		NodeID:             getEnvInt64("WORKER_ID", defaultNodeID()),
		SchedulerWorkers:   getEnvInt("SCHEDULER_WORKERS", 4),
		SchedulerRetention: time.Duration(getEnvInt("SCHEDULER_RETENTION_MIN", 24*60)) * time.Minute,

		RedisURL: getEnv("REDIS_URL", ""),

		AllowedOrigins:  getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 120),
	}

	if cfg.CallTimeout <= 0 {
		return nil, fmt.Errorf("CALL_TIMEOUT_SEC must be positive")
	}
	if cfg.SchedulerWorkers <= 0 {
		cfg.SchedulerWorkers = 1
	}
	if cfg.NodeID < 0 || cfg.NodeID > 1023 {
		return nil, fmt.Errorf("WORKER_ID must be between 0 and 1023, got %d", cfg.NodeID)
	}
	return cfg, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("SEND_TIME_ZONE: %w", err)
	}
	return loc, nil
}

// defaultNodeID derives a snowflake node id from hostname and PID.
func defaultNodeID() int64 {
	hostname, _ := os.Hostname()
	h := fnv.New32a()
	fmt.Fprintf(h, "%s-%d", hostname, os.Getpid())
	return int64(h.Sum32() % 1024)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
