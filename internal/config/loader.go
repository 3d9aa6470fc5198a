package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures the settings of the listening monitor service.
type Config struct {
	HTTPPort              int
	DBDriver              string
	DatabaseURL           string
	TimeZone              string
	Location              *time.Location
	RetentionDays         int
	StuckSessionThreshold time.Duration
	RedisURL              string
	CleanupSchedule       string
	AutoMigrate           bool
	RateLimit             float64
	RateBurst             int
	LogLevel              string
	LogFormat             string
}

// Environment keys. The YAML file uses the same names in lower case without
// the MONITOR_ prefix, for example http_port.
const (
	EnvConfigFile            = "MONITOR_CONFIG_FILE"
	EnvHTTPPort              = "MONITOR_HTTP_PORT"
	EnvDBDriver              = "MONITOR_DB_DRIVER"
	EnvDatabaseURL           = "MONITOR_DATABASE_URL"
	EnvTimeZone              = "MONITOR_TIMEZONE"
	EnvRetentionDays         = "MONITOR_RETENTION_DAYS"
	EnvStuckSessionThreshold = "MONITOR_STUCK_SESSION_THRESHOLD"
	EnvRedisURL              = "MONITOR_REDIS_URL"
	EnvCleanupSchedule       = "MONITOR_CLEANUP_SCHEDULE"
	EnvAutoMigrate           = "MONITOR_AUTO_MIGRATE"
	EnvRateLimit             = "MONITOR_RATE_LIMIT"
	EnvRateBurst             = "MONITOR_RATE_BURST"
	EnvLogLevel              = "MONITOR_LOG_LEVEL"
	EnvLogFormat             = "MONITOR_LOG_FORMAT"

	// envLegacyDatabaseURL is honoured when MONITOR_DATABASE_URL is unset.
	envLegacyDatabaseURL = "DATABASE_URL"
)

var knownKeys = []string{
	EnvHTTPPort,
	EnvDBDriver,
	EnvDatabaseURL,
	EnvTimeZone,
	EnvRetentionDays,
	EnvStuckSessionThreshold,
	EnvRedisURL,
	EnvCleanupSchedule,
	EnvAutoMigrate,
	EnvRateLimit,
	EnvRateBurst,
	EnvLogLevel,
	EnvLogFormat,
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTPPort:              8000,
		DBDriver:              "sqlite",
		DatabaseURL:           "file:phone_monitoring.db",
		TimeZone:              "Local",
		Location:              time.Local,
		RetentionDays:         30,
		StuckSessionThreshold: 6 * time.Hour,
		CleanupSchedule:       "0 3 * * *",
		RateLimit:             5,
		RateBurst:             10,
		LogLevel:              "info",
		LogFormat:             "json",
	}
}

// Load reads an optional .env file, an optional YAML file named by
// MONITOR_CONFIG_FILE and then the process environment. Later sources win.
// Every missing or invalid value is reported in a single error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}

	values := make(map[string]string)
	if path := strings.TrimSpace(os.Getenv(EnvConfigFile)); path != "" {
		fileValues, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		for key, value := range fileValues {
			values[key] = value
		}
	}
	for _, key := range knownKeys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			values[key] = value
		}
	}
	if _, ok := values[EnvDatabaseURL]; !ok {
		if legacy := strings.TrimSpace(os.Getenv(envLegacyDatabaseURL)); legacy != "" {
			values[EnvDatabaseURL] = legacy
		}
	}
	return parse(values)
}

// readFile decodes the YAML configuration file. Unknown keys are rejected.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	raw := make(map[string]any)
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	var unknown []string
	for name, value := range raw {
		key := "MONITOR_" + strings.ToUpper(name)
		if !isKnownKey(key) {
			unknown = append(unknown, name)
			continue
		}
		if value == nil {
			continue
		}
		values[key] = strings.TrimSpace(fmt.Sprint(value))
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown keys in config file %s: %s", path, strings.Join(unknown, ", "))
	}
	return values, nil
}

func parse(values map[string]string) (Config, error) {
	cfg := Default()
	var missing, invalid []string

	if v, ok := values[EnvHTTPPort]; ok {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, EnvHTTPPort)
		} else {
			cfg.HTTPPort = port
		}
	}

	if v, ok := values[EnvDatabaseURL]; ok {
		cfg.DatabaseURL = v
	}
	driverSet := false
	if v, ok := values[EnvDBDriver]; ok {
		switch strings.ToLower(v) {
		case "sqlite", "sqlite3":
			cfg.DBDriver = "sqlite"
			driverSet = true
		case "postgres", "postgresql", "pgx":
			cfg.DBDriver = "postgres"
			driverSet = true
		default:
			invalid = append(invalid, EnvDBDriver)
		}
	}
	if !driverSet && isPostgresURL(cfg.DatabaseURL) {
		cfg.DBDriver = "postgres"
	}
	if cfg.DBDriver == "postgres" && !isPostgresURL(cfg.DatabaseURL) {
		if _, ok := values[EnvDatabaseURL]; ok {
			invalid = append(invalid, EnvDatabaseURL)
		} else {
			missing = append(missing, EnvDatabaseURL)
		}
	}

	if v, ok := values[EnvTimeZone]; ok {
		loc, err := time.LoadLocation(v)
		if err != nil {
			invalid = append(invalid, EnvTimeZone)
		} else {
			cfg.TimeZone = v
			cfg.Location = loc
		}
	}

	if v, ok := values[EnvRetentionDays]; ok {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			invalid = append(invalid, EnvRetentionDays)
		} else {
			cfg.RetentionDays = days
		}
	}

	if v, ok := values[EnvStuckSessionThreshold]; ok {
		threshold, err := time.ParseDuration(v)
		if err != nil || threshold <= 0 {
			invalid = append(invalid, EnvStuckSessionThreshold)
		} else {
			cfg.StuckSessionThreshold = threshold
		}
	}

	if v, ok := values[EnvRedisURL]; ok {
		cfg.RedisURL = v
	}
	if v, ok := values[EnvCleanupSchedule]; ok {
		if len(strings.Fields(v)) != 5 && !strings.HasPrefix(v, "@") {
			invalid = append(invalid, EnvCleanupSchedule)
		} else {
			cfg.CleanupSchedule = v
		}
	}

	if v, ok := values[EnvAutoMigrate]; ok {
		auto, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, EnvAutoMigrate)
		} else {
			cfg.AutoMigrate = auto
		}
	}

	if v, ok := values[EnvRateLimit]; ok {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil || limit < 0 {
			invalid = append(invalid, EnvRateLimit)
		} else {
			cfg.RateLimit = limit
		}
	}
	if v, ok := values[EnvRateBurst]; ok {
		burst, err := strconv.Atoi(v)
		if err != nil || burst < 1 {
			invalid = append(invalid, EnvRateBurst)
		} else {
			cfg.RateBurst = burst
		}
	}

	if v, ok := values[EnvLogLevel]; ok {
		switch strings.ToLower(v) {
		case "debug", "info", "warn", "warning", "error":
			cfg.LogLevel = strings.ToLower(v)
		default:
			invalid = append(invalid, EnvLogLevel)
		}
	}
	if v, ok := values[EnvLogFormat]; ok {
		switch strings.ToLower(v) {
		case "json", "text":
			cfg.LogFormat = strings.ToLower(v)
		default:
			invalid = append(invalid, EnvLogFormat)
		}
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing required configuration: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "invalid configuration values: "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return Config{}, errors.New(strings.Join(problems, "; "))
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTPPort)
}

// SchedulerEnabled reports whether periodic cleanup runs through Redis.
func (c Config) SchedulerEnabled() bool {
	return c.RedisURL != ""
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func isKnownKey(key string) bool {
	for _, known := range knownKeys {
		if known == key {
			return true
		}
	}
	return false
}
