package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Scheduler.SLABatchSize)
	assert.Equal(t, 50, cfg.Scheduler.AutoCloseBatchSize)
	assert.Equal(t, 10*24*time.Hour, cfg.Scheduler.GracePeriod())
	assert.Equal(t, 15*time.Second, cfg.Scheduler.QueryTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.Scheduler.ReminderBatchDelay())
	assert.Equal(t, "least_load", cfg.Assignment.DefaultStrategy)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCHEDULER_AUTO_CLOSE_GRACE_DAYS", "3")
	t.Setenv("REMINDER_DEV_OVERRIDE", "true")
	t.Setenv("SCHEDULER_SLA_BATCH_SIZE", "not-a-number")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 72*time.Hour, cfg.Scheduler.GracePeriod())
	assert.True(t, cfg.Scheduler.ReminderDevOverride)
	assert.Equal(t, 100, cfg.Scheduler.SLABatchSize)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestLoadRejectsInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")
	_, err := Load()
	assert.Error(t, err)
}

func TestCalendarLocation(t *testing.T) {
	loc := CalendarConfig{TimeZone: "Not/AZone"}.Location()
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 8*60*60, offset)

	assert.Equal(t, time.UTC, CalendarConfig{TimeZone: "UTC"}.Location())
}
