package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/langsched/internal/shared"
	"github.com/example/langsched/internal/spaced_repetition"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DB_TYPE", "DB_PATH", "DATABASE_URL", "TELEGRAM_BOT_TOKEN", "ADMIN_USER_IDS",
		"ENABLE_SCHEDULER", "NOTIFICATION_START_HOUR", "NOTIFICATION_END_HOUR",
		"REMINDER_INTERVAL", "SCHEDULING_CONFIG",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, DefaultDBPath, cfg.Database.Path)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, DefaultNotificationStartHour, cfg.Scheduler.NotificationStartHour)
	assert.Equal(t, DefaultNotificationEndHour, cfg.Scheduler.NotificationEndHour)
	assert.Equal(t, time.Hour, cfg.Scheduler.ReminderInterval)
	assert.Equal(t, DefaultScheduling(), cfg.Scheduling)

	f, err := cfg.Scheduling.FSRS()
	require.NoError(t, err)
	assert.Equal(t, spaced_repetition.DefaultWeights, f.Weights)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_TYPE", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/lang?sslmode=disable")
	t.Setenv("ADMIN_USER_IDS", "12, 34,bad,")
	t.Setenv("ENABLE_SCHEDULER", "false")
	t.Setenv("NOTIFICATION_START_HOUR", "6")
	t.Setenv("REMINDER_INTERVAL", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, []int64{12, 34}, cfg.Telegram.AdminUserIDs)
	assert.True(t, cfg.IsAdmin(34))
	assert.False(t, cfg.IsAdmin(56))
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 6, cfg.Scheduler.NotificationStartHour)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.ReminderInterval)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"DB_TYPE": "mysql"}},
		{"postgres without url", map[string]string{"DB_TYPE": "postgres"}},
		{"hour out of range", map[string]string{"NOTIFICATION_END_HOUR": "24"}},
		{"negative interval", map[string]string{"REMINDER_INTERVAL": "-5m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.True(t, shared.IsInvalidArgument(err))
		})
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scheduling.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScheduling_PartialFileKeepsDefaults(t *testing.T) {
	path := writeYAML(t, `
request_retention: 0.85
session_size: 20
thresholds:
  controlled_stability: 10
`)

	sc, err := LoadScheduling(path)
	require.NoError(t, err)

	assert.Equal(t, 0.85, sc.RequestRetention)
	assert.Equal(t, 20, sc.SessionSize)
	assert.Equal(t, spaced_repetition.DefaultMaximumInterval, sc.MaximumInterval)
	assert.Equal(t, 0.3, sc.NewItemRatio)
	assert.Equal(t, 10.0, sc.Thresholds.ControlledStability)
	assert.Equal(t, 30.0, sc.Thresholds.AutomaticStability)
	require.NoError(t, sc.Validate())
}

func TestLoadScheduling_CustomWeights(t *testing.T) {
	path := writeYAML(t, `
weights: [0.5, 0.6, 2.4, 5.8, 4.93, 0.94, 0.86, 0.01, 1.49, 0.14, 0.94, 2.18, 0.05, 0.34, 1.26, 0.29, 2.61]
`)

	sc, err := LoadScheduling(path)
	require.NoError(t, err)

	f, err := sc.FSRS()
	require.NoError(t, err)
	assert.Equal(t, 0.5, f.Weights[0])
}

func TestSchedulingValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SchedulingConfig)
	}{
		{"short weights", func(sc *SchedulingConfig) { sc.Weights = []float64{1, 2, 3} }},
		{"retention of one", func(sc *SchedulingConfig) { sc.RequestRetention = 1 }},
		{"zero max interval", func(sc *SchedulingConfig) { sc.MaximumInterval = 0 }},
		{"ratio above one", func(sc *SchedulingConfig) { sc.NewItemRatio = 1.5 }},
		{"negative session", func(sc *SchedulingConfig) { sc.SessionSize = -1 }},
		{"bad threshold", func(sc *SchedulingConfig) { sc.Thresholds.ControlledAccuracy = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := DefaultScheduling()
			tt.mutate(&sc)
			err := sc.Validate()
			require.Error(t, err)
			assert.True(t, shared.IsInvalidArgument(err))
		})
	}
}

func TestLoadScheduling_Errors(t *testing.T) {
	_, err := LoadScheduling(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadScheduling(writeYAML(t, "weights: [oops"))
	assert.Error(t, err)
}
