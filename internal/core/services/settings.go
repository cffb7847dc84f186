package services

import (
	"fmt"
	"time"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keySourceType        = "source.type"
	keySourceEndpoint    = "source.endpoint"
	keySourceResource    = "source.resource"
	keySourceOrg         = "source.org"
	keySourceCustomer    = "source.customer"
	keyPageSize          = "pager.page_size"
	keyMaxAttempts       = "pager.max_attempts"
	keyBackoffBase       = "pager.backoff_base"
	keyRateLimitDefault  = "pager.rate_limit_default"
	keyRequestsPerSecond = "pager.requests_per_second"
	keyWorkers           = "pager.workers"
	keyLandingDir        = "landing.dir"
	keyFlushBytes        = "landing.flush_bytes"
	keyFlushRecords      = "landing.flush_records"
	keyFlushAttempts     = "landing.flush_attempts"
	keyDeltaMode         = "reconcile.delta_mode"
	keyChunkSize         = "persist.chunk_size"
	keyRunTimeout        = "run.timeout"
	keyStoreDriver       = "store.driver"
	keyStoreDir          = "store.dir"
	keyStoreDSN          = "store.dsn"
	keyAuthMethod        = "auth.method"
	keyAuthTenantID      = "auth.tenant_id"
	keyAuthClientID      = "auth.client_id"
	keyAuthClientSecret  = "auth.client_secret"
	keyAuthTokenURL      = "auth.token_url"
	keyAuthToken         = "auth.token"
	keyProbeEndpoint     = "probe.endpoint"
	keySchedulerEnabled  = "scheduler.enabled"
	keySchedulerInterval = "scheduler.interval"
)

// SettingsService maps the flat configuration store onto domain.Settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get returns the current settings with defaults applied. Invalid settings are an error.
func (s *SettingsService) Get() (*domain.Settings, error) {
	defaults := domain.DefaultSettings()

	backoff, err := s.getDuration(keyBackoffBase, defaults.Pager.BackoffBase)
	if err != nil {
		return nil, err
	}
	rateLimitDefault, err := s.getDuration(keyRateLimitDefault, defaults.Pager.RateLimitDefault)
	if err != nil {
		return nil, err
	}
	timeout, err := s.getDuration(keyRunTimeout, defaults.RunTimeout)
	if err != nil {
		return nil, err
	}

	settings := &domain.Settings{
		Source: domain.SourceSettings{
			Type:     domain.SourceType(s.getString(keySourceType, string(defaults.Source.Type))),
			Endpoint: s.getString(keySourceEndpoint, defaults.Source.Endpoint),
			Resource: s.getString(keySourceResource, defaults.Source.Resource),
			Org:      s.configStore.GetString(keySourceOrg),
			Customer: s.getString(keySourceCustomer, defaults.Source.Customer),
		},
		Pager: domain.PagerSettings{
			PageSize:          s.getInt(keyPageSize, defaults.Pager.PageSize),
			MaxAttempts:       s.getInt(keyMaxAttempts, defaults.Pager.MaxAttempts),
			BackoffBase:       backoff,
			RateLimitDefault:  rateLimitDefault,
			RequestsPerSecond: s.getFloat(keyRequestsPerSecond, defaults.Pager.RequestsPerSecond),
			Workers:           s.getInt(keyWorkers, defaults.Pager.Workers),
		},
		Landing: domain.LandingSettings{
			Dir:           s.configStore.GetString(keyLandingDir),
			FlushBytes:    s.getInt(keyFlushBytes, defaults.Landing.FlushBytes),
			FlushRecords:  s.getInt(keyFlushRecords, defaults.Landing.FlushRecords),
			FlushAttempts: s.getInt(keyFlushAttempts, defaults.Landing.FlushAttempts),
		},
		Store: domain.StoreSettings{
			Driver: domain.StoreDriver(s.getString(keyStoreDriver, string(defaults.Store.Driver))),
			Dir:    s.configStore.GetString(keyStoreDir),
			DSN:    s.configStore.GetString(keyStoreDSN),
		},
		Auth: domain.AuthSettings{
			Method:       domain.AuthMethod(s.getString(keyAuthMethod, string(defaults.Auth.Method))),
			TenantID:     s.configStore.GetString(keyAuthTenantID),
			ClientID:     s.configStore.GetString(keyAuthClientID),
			ClientSecret: s.configStore.GetString(keyAuthClientSecret),
			TokenURL:     s.configStore.GetString(keyAuthTokenURL),
			Token:        s.configStore.GetString(keyAuthToken),
		},
		DeltaMode:        s.getBool(keyDeltaMode, defaults.DeltaMode),
		PersistChunkSize: s.getInt(keyChunkSize, defaults.PersistChunkSize),
		RunTimeout:       timeout,
		ProbeEndpoint:    s.configStore.GetString(keyProbeEndpoint),
		Scheduler:        s.GetSchedulerConfig(),
	}

	// Endpoint and resource defaults point at Graph; other sources only take explicit overrides.
	if settings.Source.Type != domain.SourceGraph {
		settings.Source.Endpoint = s.configStore.GetString(keySourceEndpoint)
		settings.Source.Resource = s.configStore.GetString(keySourceResource)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Set stores a single configuration value and persists it.
func (s *SettingsService) Set(key string, value any) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", domain.ErrInvalidInput)
	}
	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Reload re-reads the configuration from storage.
func (s *SettingsService) Reload() error {
	return s.configStore.Load()
}

// Path returns the configuration file path.
func (s *SettingsService) Path() string {
	return s.configStore.Path()
}

// GetSchedulerConfig returns the scheduler configuration.
// Returns default configuration if nothing is configured.
func (s *SettingsService) GetSchedulerConfig() domain.SchedulerConfig {
	defaults := domain.DefaultSchedulerConfig()

	// Master switch
	if _, exists := s.configStore.Get(keySchedulerEnabled); exists {
		defaults.Enabled = s.configStore.GetBool(keySchedulerEnabled)
	}

	taskCfg := defaults.TaskConfigs[domain.TaskIDDirectorySync]
	taskCfg.Enabled = defaults.Enabled

	// Interval is a duration string like "6h"
	if interval := s.configStore.GetString(keySchedulerInterval); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d > 0 {
			taskCfg.Interval = d
		}
	}

	defaults.TaskConfigs[domain.TaskIDDirectorySync] = taskCfg
	return defaults
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, exists := s.configStore.Get(key)
	if !exists {
		return defaultVal
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return defaultVal
	}
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	str := s.configStore.GetString(key)
	if str == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	return d, nil
}
