package config // package config loads application configuration from environment variables

import (
    "errors"
    "fmt"
    "os"
    "sort"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// Config holds the runtime configuration of the booking service.  Each
// field corresponds to an environment variable.
type Config struct {
    Env             string        // APP_ENV, e.g. "dev" or "prod"
    Port            string        // APP_PORT, HTTP port to listen on
    DBUser          string        // DB_USER
    DBPass          string        // DB_PASS (optional)
    DBHost          string        // DB_HOST
    DBPort          string        // DB_PORT
    DBName          string        // DB_NAME
    DBMigrate       bool          // DB_MIGRATE, create missing tables on start
    JWTSecret       string        // JWT_SECRET, verifies access tokens
    AccessTTLMin    int           // ACCESS_TOKEN_TTL_MIN, lifetime of tokens minted by devtoken
    LogLevel        string        // LOG_LEVEL: debug, info, warn, error or off
    AMQPURL         string        // AMQP_URL or RABBITMQ_URL; empty disables messaging
    BookingLogPath  string        // BOOKING_LOG_PATH, audit file written by the consumer
    ShutdownTimeout time.Duration // SHUTDOWN_TIMEOUT
}

// LoadDotEnv loads variables from a .env file in the working directory.
// A missing file is not an error; variables already set win.
func LoadDotEnv(files ...string) error {
    if len(files) == 0 {
        files = []string{".env"}
    }
    var existing []string
    for _, f := range files {
        if _, err := os.Stat(f); err == nil {
            existing = append(existing, f)
        }
    }
    if len(existing) == 0 {
        return nil
    }
    return godotenv.Load(existing...)
}

// Load reads the configuration from the environment.  Every missing
// required variable is reported in one error.
func Load() (Config, error) {
    var missing []string
    must := func(key string) string {
        v := strings.TrimSpace(os.Getenv(key))
        if v == "" {
            missing = append(missing, key)
        }
        return v
    }
    cfg := Config{
        Env:             must("APP_ENV"),
        Port:            must("APP_PORT"),
        DBUser:          must("DB_USER"),
        DBPass:          os.Getenv("DB_PASS"),
        DBHost:          must("DB_HOST"),
        DBPort:          must("DB_PORT"),
        DBName:          must("DB_NAME"),
        DBMigrate:       envBool("DB_MIGRATE", false),
        JWTSecret:       must("JWT_SECRET"),
        AccessTTLMin:    envInt("ACCESS_TOKEN_TTL_MIN", 60),
        LogLevel:        strings.ToLower(envStr("LOG_LEVEL", "info")),
        AMQPURL:         envStr("AMQP_URL", os.Getenv("RABBITMQ_URL")),
        BookingLogPath:  envStr("BOOKING_LOG_PATH", "logs/booking.log"),
        ShutdownTimeout: envDur("SHUTDOWN_TIMEOUT", 10*time.Second),
    }
    if len(missing) > 0 {
        sort.Strings(missing)
        return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
    }
    if cfg.AccessTTLMin < 1 {
        return Config{}, errors.New("ACCESS_TOKEN_TTL_MIN must be at least 1")
    }
    switch cfg.LogLevel {
    case "debug", "info", "warn", "error", "off":
    default:
        return Config{}, fmt.Errorf("invalid LOG_LEVEL %q", cfg.LogLevel)
    }
    return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }

func envStr(k, d string) string {
    if v := strings.TrimSpace(os.Getenv(k)); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if dur, err := time.ParseDuration(v); err == nil {
        return dur
    }
    return d
}
