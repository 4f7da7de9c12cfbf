package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() Config {
	var c Config
	c.LoadDefaults()
	return c
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, "templesanathan.db", c.LocalDBPath)
	assert.Equal(t, 5*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 15*time.Second, c.RequestTimeout)
	assert.Equal(t, "avatars", c.StorageBucket)
	assert.False(t, c.Configured())
}

func TestLoadFrom_NoSources(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	os.Unsetenv("SUPABASE_URL")

	got := loadFrom(nil)
	want := defaults()
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFrom_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"backend_url": "https://json.supabase.co",
		"backend_anon_key": "json-key",
		"online_check_interval": "10s",
		"log_level": "debug"
	}`), 0o600))

	t.Setenv("SUPABASE_ANON_KEY", "env-key")
	t.Setenv("TEMPLE_REQUEST_TIMEOUT", "2s")

	got := loadFrom([]string{"-c", path, "-u", "https://flag.supabase.co", "-demo"})

	assert.Equal(t, "https://flag.supabase.co", got.BackendURL)
	assert.Equal(t, "env-key", got.BackendAnonKey)
	assert.Equal(t, 10*time.Second, got.OnlineCheckInterval)
	assert.Equal(t, 2*time.Second, got.RequestTimeout)
	assert.Equal(t, "debug", got.LogLevel)
	assert.True(t, got.Demo)
	assert.True(t, got.Configured())
}

func TestParseFlags_IntervalOnlyWhenSet(t *testing.T) {
	c := defaults()
	c.OnlineCheckInterval = 1500 * time.Millisecond

	parseFlags(&c, []string{"-l", "warn"})
	assert.Equal(t, 1500*time.Millisecond, c.OnlineCheckInterval)
	assert.Equal(t, "warn", c.LogLevel)

	parseFlags(&c, []string{"-i", "7"})
	assert.Equal(t, 7*time.Second, c.OnlineCheckInterval)
}

func TestParseJson_BadFilePanics(t *testing.T) {
	c := defaults()
	assert.Panics(t, func() { parseJson(&c, []string{"-c", filepath.Join(t.TempDir(), "missing.json")}) })
}

func TestStorageConfigured(t *testing.T) {
	c := defaults()
	assert.False(t, c.StorageConfigured())
	c.StorageEndpoint, c.StorageAccessKey, c.StorageSecretKey = "http://minio:9000", "a", "b"
	assert.True(t, c.StorageConfigured())
}
