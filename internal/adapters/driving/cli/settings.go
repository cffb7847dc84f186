package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dirsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
	"github.com/custodia-labs/dirsync/internal/core/services"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change the settings in config.toml.

Settings commands work even when the current configuration is invalid,
so a broken value can be fixed with 'dirsync settings set'.`,
	Annotations: map[string]string{skipWiring: "true"},
	RunE:        runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show current settings",
	Annotations: map[string]string{skipWiring: "true"},
	RunE:        runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a single configuration value by its dotted key.

Examples:
  dirsync settings set source.type github
  dirsync settings set source.org custodia-labs
  dirsync settings set pager.page_size 500
  dirsync settings set reconcile.delta_mode false
  dirsync settings set scheduler.interval 6h`,
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{skipWiring: "true"},
	RunE:        runSettingsSet,
}

var settingsPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Print the configuration file path",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipWiring: "true"},
	RunE:        runSettingsPath,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsPathCmd)
	rootCmd.AddCommand(settingsCmd)
}

// openSettings returns the wired settings service or one read straight from disk.
func openSettings() (driving.SettingsService, error) {
	if settingsService != nil {
		return settingsService, nil
	}
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	settingsService = services.NewSettingsService(store)
	return settingsService, nil
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	svc, err := openSettings()
	if err != nil {
		return err
	}
	settings, err := svc.Get()
	if err != nil {
		return fmt.Errorf("invalid settings in %s: %w", svc.Path(), err)
	}

	view := settingsView(settings)
	if ok, err := printStructured(cmd.OutOrStdout(), view); ok || err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, section := range view {
		fmt.Fprintln(w, render(w, headingStyle, "["+section.Name+"]"))
		for _, kv := range section.Values {
			field(w, "  "+kv.Key, kv.Value)
		}
		fmt.Fprintln(w)
	}
	return nil
}

type settingsSection struct {
	Name   string         `json:"name"`
	Values []settingValue `json:"values"`
}

type settingValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func settingsView(s *domain.Settings) []settingsSection {
	sched := s.Scheduler.GetTaskConfig(domain.TaskIDDirectorySync)
	return []settingsSection{
		{Name: "Source", Values: []settingValue{
			{"type", string(s.Source.Type)},
			{"endpoint", orUnset(s.Source.Endpoint)},
			{"resource", orUnset(s.Source.Resource)},
			{"org", orUnset(s.Source.Org)},
			{"customer", orUnset(s.Source.Customer)},
		}},
		{Name: "Pager", Values: []settingValue{
			{"page_size", strconv.Itoa(s.Pager.PageSize)},
			{"max_attempts", strconv.Itoa(s.Pager.MaxAttempts)},
			{"backoff_base", s.Pager.BackoffBase.String()},
			{"rate_limit_default", s.Pager.RateLimitDefault.String()},
			{"requests_per_second", strconv.FormatFloat(s.Pager.RequestsPerSecond, 'g', -1, 64)},
			{"workers", strconv.Itoa(s.Pager.Workers)},
		}},
		{Name: "Landing", Values: []settingValue{
			{"dir", orUnset(s.Landing.Dir)},
			{"flush_bytes", strconv.Itoa(s.Landing.FlushBytes)},
			{"flush_records", strconv.Itoa(s.Landing.FlushRecords)},
			{"flush_attempts", strconv.Itoa(s.Landing.FlushAttempts)},
		}},
		{Name: "Store", Values: []settingValue{
			{"driver", string(s.Store.Driver)},
			{"dir", orUnset(s.Store.Dir)},
			{"dsn", maskSecret(s.Store.DSN)},
		}},
		{Name: "Auth", Values: []settingValue{
			{"method", string(s.Auth.Method)},
			{"tenant_id", orUnset(s.Auth.TenantID)},
			{"client_id", orUnset(s.Auth.ClientID)},
			{"client_secret", maskSecret(s.Auth.ClientSecret)},
			{"token_url", orUnset(s.Auth.TokenURL)},
			{"token", maskSecret(s.Auth.Token)},
		}},
		{Name: "Run", Values: []settingValue{
			{"delta_mode", strconv.FormatBool(s.DeltaMode)},
			{"chunk_size", strconv.Itoa(s.PersistChunkSize)},
			{"timeout", s.RunTimeout.String()},
			{"probe_endpoint", orUnset(s.ProbeEndpoint)},
		}},
		{Name: "Scheduler", Values: []settingValue{
			{"enabled", strconv.FormatBool(s.Scheduler.Enabled)},
			{"interval", sched.Interval.String()},
		}},
	}
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	svc, err := openSettings()
	if err != nil {
		return err
	}
	key := strings.TrimSpace(args[0])
	if err := svc.Set(key, parseValue(args[1])); err != nil {
		return err
	}
	cmd.Printf("Set %s in %s\n", key, svc.Path())

	// Report a value the pipeline cannot run with without rejecting the write.
	if _, err := svc.Get(); err != nil {
		cmd.PrintErrf("Warning: configuration is now invalid: %v\n", err)
	}
	return nil
}

func runSettingsPath(cmd *cobra.Command, _ []string) error {
	svc, err := openSettings()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), svc.Path())
	return nil
}

// parseValue stores booleans and numbers as TOML scalars and everything else as a string.
func parseValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return b
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && strings.Contains(raw, ".") {
		return f
	}
	return raw
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// maskSecret masks a secret for display, showing only first and last 4 characters.
func maskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
