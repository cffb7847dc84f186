package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dirsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// directoryServer serves a two-page Graph /users listing. Setting disabled
// flips bob's accountEnabled.
func directoryServer(t *testing.T, disabled *atomic.Bool) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprintf(w, `{"value":[{"id":"bob","userPrincipalName":"bob@x","accountEnabled":%t}]}`, !disabled.Load())
			return
		}
		fmt.Fprintf(w, `{"value":[{"id":"alice","userPrincipalName":"alice@x","accountEnabled":true}],
			"@odata.nextLink":"%s/v1.0/users?page=2"}`, srv.URL)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file.ConfigFileName), []byte(body), 0o600))
}

func TestBuild_EndToEndWithSQLite(t *testing.T) {
	ctx := context.Background()
	var disabled atomic.Bool
	srv := directoryServer(t, &disabled)

	configDir, dataDir, landingDir := t.TempDir(), t.TempDir(), t.TempDir()
	writeConfig(t, configDir, fmt.Sprintf(`
[source]
type = "graph"
endpoint = "%s/v1.0/users"

[auth]
method = "none"

[store]
driver = "sqlite"
dir = %q

[landing]
dir = %q
`, srv.URL, dataDir, landingDir))

	a, err := Build(ctx, Options{ConfigDir: configDir, Version: "test"})
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	// First run: everything is new.
	first, err := a.Runs.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, first.State)
	assert.Equal(t, 2, first.TotalUsers)
	assert.Equal(t, 2, first.NewUsers)
	assert.True(t, first.CollectionComplete)
	assert.FileExists(t, filepath.Join(landingDir, first.SnapshotID+".ndjson"))

	// Unchanged source: no events.
	second, err := a.Runs.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, second.UnchangedUsers)
	assert.Zero(t, second.NewUsers+second.ModifiedUsers+second.DeletedUsers)
	assert.Zero(t, second.WriteCount)

	// One tracked attribute changes.
	disabled.Store(true)
	third, err := a.Runs.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, third.ModifiedUsers)

	events, err := a.History.Changes(ctx, third.SnapshotID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "bob", events[0].ID)
	assert.Equal(t, domain.FieldDelta{Old: true, New: false}, events[0].Changes[domain.FieldAccountEnabled])

	latest, err := a.History.LatestSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, third.RunID, latest.RunID)
}

func TestBuild_DryRunKeepsNothingOnDisk(t *testing.T) {
	ctx := context.Background()
	var disabled atomic.Bool
	srv := directoryServer(t, &disabled)

	configDir, landingDir := t.TempDir(), t.TempDir()
	writeConfig(t, configDir, fmt.Sprintf(`
[source]
type = "graph"
endpoint = "%s/v1.0/users"

[auth]
method = "none"

[landing]
dir = %q
`, srv.URL, landingDir))

	a, err := Build(ctx, Options{ConfigDir: configDir, DryRun: true})
	require.NoError(t, err)
	defer a.Close()

	summary, err := a.Runs.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.NewUsers)

	entries, err := os.ReadDir(landingDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuild_InvalidConfiguration(t *testing.T) {
	configDir := t.TempDir()
	writeConfig(t, configDir, `
[source]
type = "ldap"
`)

	_, err := Build(context.Background(), Options{ConfigDir: configDir, DryRun: true})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestBuild_ClientCredentialsNeedSecrets(t *testing.T) {
	configDir := t.TempDir()
	writeConfig(t, configDir, `
[auth]
method = "client_credentials"
`)

	_, err := Build(context.Background(), Options{ConfigDir: configDir, DryRun: true})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestApp_Reload(t *testing.T) {
	ctx := context.Background()
	configDir := t.TempDir()
	writeConfig(t, configDir, `
[auth]
method = "none"
`)

	a, err := Build(ctx, Options{ConfigDir: configDir, DryRun: true})
	require.NoError(t, err)
	defer a.Close()

	writeConfig(t, configDir, `
[auth]
method = "none"

[reconcile]
delta_mode = false

[scheduler]
interval = "2h"
`)
	require.NoError(t, a.Reload(ctx))

	settings, err := a.Settings.Get()
	require.NoError(t, err)
	assert.False(t, settings.DeltaMode)

	writeConfig(t, configDir, `
[pager]
page_size = -1
`)
	assert.Error(t, a.Reload(ctx))
}
