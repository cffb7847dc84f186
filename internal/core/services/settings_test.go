package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dirsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/dirsync/internal/core/domain"
)

func TestNewSettingsService(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	require.NotNil(t, service)
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	settings, err := service.Get()

	require.NoError(t, err)
	require.NotNil(t, settings)

	defaults := domain.DefaultSettings()
	assert.Equal(t, defaults.Source, settings.Source)
	assert.Equal(t, defaults.Pager, settings.Pager)
	assert.Equal(t, defaults.Landing.FlushBytes, settings.Landing.FlushBytes)
	assert.Equal(t, defaults.RunTimeout, settings.RunTimeout)
	assert.True(t, settings.DeltaMode)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("source.type", "github")
	_ = store.Set("source.org", "custodia-labs")
	_ = store.Set("pager.page_size", int64(100))
	_ = store.Set("pager.backoff_base", "250ms")
	_ = store.Set("pager.requests_per_second", 2.5)
	_ = store.Set("reconcile.delta_mode", false)
	_ = store.Set("run.timeout", "5m")
	_ = store.Set("auth.method", "static")
	_ = store.Set("auth.token", "ghp_example")
	_ = store.Set("probe.endpoint", "http://localhost:8080/mcp")

	service := NewSettingsService(store)

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.SourceGitHub, settings.Source.Type)
	assert.Equal(t, "custodia-labs", settings.Source.Org)
	assert.Empty(t, settings.Source.Endpoint)
	assert.Empty(t, settings.Source.Resource)
	assert.Equal(t, 100, settings.Pager.PageSize)
	assert.Equal(t, 250*time.Millisecond, settings.Pager.BackoffBase)
	assert.InDelta(t, 2.5, settings.Pager.RequestsPerSecond, 0.0001)
	assert.False(t, settings.DeltaMode)
	assert.Equal(t, 5*time.Minute, settings.RunTimeout)
	assert.Equal(t, domain.AuthMethodStatic, settings.Auth.Method)
	assert.Equal(t, "ghp_example", settings.Auth.Token)
	assert.Equal(t, "http://localhost:8080/mcp", settings.ProbeEndpoint)
}

func TestSettingsService_Get_InvalidValues(t *testing.T) {
	t.Run("unknown source", func(t *testing.T) {
		store := memory.NewConfigStore()
		_ = store.Set("source.type", "ldap")

		_, err := NewSettingsService(store).Get()
		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	})

	t.Run("bad duration", func(t *testing.T) {
		store := memory.NewConfigStore()
		_ = store.Set("run.timeout", "soon")

		_, err := NewSettingsService(store).Get()
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("github without org", func(t *testing.T) {
		store := memory.NewConfigStore()
		_ = store.Set("source.type", "github")

		_, err := NewSettingsService(store).Get()
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestSettingsService_Set(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)

	require.NoError(t, service.Set("pager.workers", 16))
	assert.Equal(t, 16, store.GetInt("pager.workers"))

	assert.ErrorIs(t, service.Set("", 1), domain.ErrInvalidInput)
}

func TestSettingsService_GetSchedulerConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := NewSettingsService(memory.NewConfigStore()).GetSchedulerConfig()

		assert.True(t, cfg.Enabled)
		assert.Equal(t, 24*time.Hour, cfg.GetTaskConfig(domain.TaskIDDirectorySync).Interval)
	})

	t.Run("configured", func(t *testing.T) {
		store := memory.NewConfigStore()
		_ = store.Set("scheduler.enabled", false)
		_ = store.Set("scheduler.interval", "6h")

		cfg := NewSettingsService(store).GetSchedulerConfig()

		assert.False(t, cfg.Enabled)
		task := cfg.GetTaskConfig(domain.TaskIDDirectorySync)
		assert.False(t, task.Enabled)
		assert.Equal(t, 6*time.Hour, task.Interval)
	})

	t.Run("invalid interval keeps default", func(t *testing.T) {
		store := memory.NewConfigStore()
		_ = store.Set("scheduler.interval", "daily")

		cfg := NewSettingsService(store).GetSchedulerConfig()
		assert.Equal(t, 24*time.Hour, cfg.GetTaskConfig(domain.TaskIDDirectorySync).Interval)
	})
}
