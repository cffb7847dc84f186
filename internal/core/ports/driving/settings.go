package driving

import "github.com/custodia-labs/dirsync/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current settings with defaults applied.
	// Returns an error wrapping domain.ErrInvalidInput or domain.ErrUnsupportedType
	// if the configuration cannot be run with.
	Get() (*domain.Settings, error)

	// Set stores a single configuration value.
	Set(key string, value any) error

	// Reload re-reads the configuration from storage.
	Reload() error

	// Path returns the configuration file path.
	Path() string

	// GetSchedulerConfig returns the scheduler configuration.
	GetSchedulerConfig() domain.SchedulerConfig
}
