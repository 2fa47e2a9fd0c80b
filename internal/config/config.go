package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/example/langsched/internal/mastery"
	"github.com/example/langsched/internal/queue"
	"github.com/example/langsched/internal/shared"
	"github.com/example/langsched/internal/spaced_repetition"
)

// Defaults for notification hours and the reminder job
const (
	DefaultNotificationStartHour = 8
	DefaultNotificationEndHour   = 22
	DefaultReminderInterval      = time.Hour
	DefaultSessionSize           = 10
	DefaultDBPath                = "data/langsched.db"
)

// Config holds all application configuration.
type Config struct {
	Database   DatabaseConfig
	Telegram   TelegramConfig
	Scheduler  SchedulerConfig
	Scheduling SchedulingConfig
}

// DatabaseConfig selects the SQL backend.
type DatabaseConfig struct {
	Type string // sqlite or postgres
	Path string // sqlite file
	URL  string // postgres connection string
}

// TelegramConfig holds bot settings.
type TelegramConfig struct {
	Token        string
	AdminUserIDs []int64
}

// SchedulerConfig controls the reminder job.
type SchedulerConfig struct {
	Enabled               bool
	NotificationStartHour int
	NotificationEndHour   int
	ReminderInterval      time.Duration
}

// SchedulingConfig is the tunable part of the scheduling core, loaded from
// the YAML file named by SCHEDULING_CONFIG.
type SchedulingConfig struct {
	RequestRetention float64            `yaml:"request_retention"`
	MaximumInterval  int                `yaml:"maximum_interval"`
	Weights          []float64          `yaml:"weights"` // empty means defaults
	NewItemRatio     float64            `yaml:"new_item_ratio"`
	SessionSize      int                `yaml:"session_size"`
	Thresholds       mastery.Thresholds `yaml:"thresholds"`
}

// DefaultScheduling returns the calibrated scheduling defaults.
func DefaultScheduling() SchedulingConfig {
	return SchedulingConfig{
		RequestRetention: spaced_repetition.DefaultRequestRetention,
		MaximumInterval:  spaced_repetition.DefaultMaximumInterval,
		NewItemRatio:     queue.DefaultNewItemRatio,
		SessionSize:      DefaultSessionSize,
		Thresholds:       mastery.DefaultThresholds(),
	}
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	// .env is optional; real environment wins
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Type: strings.ToLower(getEnv("DB_TYPE", "sqlite")),
			Path: getEnv("DB_PATH", DefaultDBPath),
			URL:  os.Getenv("DATABASE_URL"),
		},
		Telegram: TelegramConfig{
			Token:        os.Getenv("TELEGRAM_BOT_TOKEN"),
			AdminUserIDs: getEnvInt64Slice("ADMIN_USER_IDS", nil),
		},
		Scheduler: SchedulerConfig{
			Enabled:               getEnvBool("ENABLE_SCHEDULER", true),
			NotificationStartHour: getEnvInt("NOTIFICATION_START_HOUR", DefaultNotificationStartHour),
			NotificationEndHour:   getEnvInt("NOTIFICATION_END_HOUR", DefaultNotificationEndHour),
			ReminderInterval:      getEnvDuration("REMINDER_INTERVAL", DefaultReminderInterval),
		},
		Scheduling: DefaultScheduling(),
	}

	if path := os.Getenv("SCHEDULING_CONFIG"); path != "" {
		sc, err := LoadScheduling(path)
		if err != nil {
			return nil, err
		}
		cfg.Scheduling = sc
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadScheduling reads a YAML scheduling file on top of the defaults.
// Keys missing from the file keep their default values.
func LoadScheduling(path string) (SchedulingConfig, error) {
	sc := DefaultScheduling()
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("failed to read scheduling config: %w", err)
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("failed to parse scheduling config %s: %w", path, err)
	}
	return sc, nil
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return shared.Invalid("config", "Validate", "DB_PATH is required for sqlite")
		}
	case "postgres":
		if c.Database.URL == "" {
			return shared.Invalid("config", "Validate", "DATABASE_URL is required for postgres")
		}
	default:
		return shared.Invalid("config", "Validate", "unsupported DB_TYPE %q", c.Database.Type)
	}

	s := c.Scheduler
	if s.NotificationStartHour < 0 || s.NotificationStartHour > 23 ||
		s.NotificationEndHour < 0 || s.NotificationEndHour > 23 {
		return shared.Invalid("config", "Validate", "notification hours must be within 0-23")
	}
	if s.ReminderInterval <= 0 {
		return shared.Invalid("config", "Validate", "REMINDER_INTERVAL must be positive")
	}

	return c.Scheduling.Validate()
}

// Validate checks the scheduling values against the core constraints.
func (sc SchedulingConfig) Validate() error {
	if _, err := sc.FSRS(); err != nil {
		return err
	}
	if math.IsNaN(sc.NewItemRatio) || sc.NewItemRatio < 0 || sc.NewItemRatio > 1 {
		return shared.Invalid("config", "Validate", "new_item_ratio = %f, want [0, 1]", sc.NewItemRatio)
	}
	if sc.SessionSize < 0 {
		return shared.Invalid("config", "Validate", "session_size = %d must be non-negative", sc.SessionSize)
	}
	return sc.Thresholds.Validate()
}

// FSRS builds a validated memory model.
func (sc SchedulingConfig) FSRS() (*spaced_repetition.FSRS, error) {
	f := spaced_repetition.NewFSRS()
	if len(sc.Weights) > 0 {
		w, err := spaced_repetition.WeightsFromSlice(sc.Weights)
		if err != nil {
			return nil, err
		}
		f.Weights = w
	}
	f.RequestRetention = sc.RequestRetention
	f.MaximumInterval = sc.MaximumInterval
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// IsAdmin reports whether the Telegram user is listed in ADMIN_USER_IDS.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

// getEnvDuration accepts Go durations ("30m") or a bare number of minutes.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if m, err := strconv.Atoi(val); err == nil {
		return time.Duration(m) * time.Minute
	}
	return defaultVal
}

func getEnvInt64Slice(key string, defaultVal []int64) []int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}

	parts := strings.Split(val, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		i, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		result = append(result, i)
	}
	return result
}
