package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "htmlkit.json5"))
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)

	opts, err := cfg.ClientOptions(false, false)
	require.NoError(t, err)
	require.True(t, opts.EnableJavaScript)
	require.Equal(t, time.Second*60, opts.Timeout)
	require.Empty(t, opts.DumpDir)

	cacheOpts, err := cfg.CacheOptions()
	require.NoError(t, err)
	require.Equal(t, time.Hour*20, cacheOpts.TTL)
	require.Empty(t, cacheOpts.Dir)
}

func TestLoadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "htmlkit.json5")

	err := os.WriteFile(path, []byte(`{
		// comments are fine in json5
		"client": { "javascript": false, "timeout": "15s" },
		"cache": { "dir": "/tmp/pages", "ttl": "1h" },
	}`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "htmlkit.local.json5"), []byte(`{
		"cache": { "ttl": "30m" },
	}`), 0600)
	require.NoError(t, err)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	opts, err := cfg.ClientOptions(true, false)
	require.NoError(t, err)
	require.False(t, opts.EnableJavaScript)
	require.Equal(t, time.Second*15, opts.Timeout)
	require.Equal(t, ".dev/resty", opts.DumpDir)

	cacheOpts, err := cfg.CacheOptions()
	require.NoError(t, err)
	require.Equal(t, "/tmp/pages", cacheOpts.Dir)
	require.Equal(t, time.Minute*30, cacheOpts.TTL)
}

func TestNoJsFlagWins(t *testing.T) {
	enabled := true
	cfg := defaultConfig()
	cfg.Client.JavaScript = &enabled

	opts, err := cfg.ClientOptions(false, true)
	require.NoError(t, err)
	require.False(t, opts.EnableJavaScript)
}

func TestInvalidDurations(t *testing.T) {
	cfg := defaultConfig()
	cfg.Client.Timeout = "soon"
	_, err := cfg.ClientOptions(false, false)
	require.ErrorContains(t, err, "client.timeout")

	cfg = defaultConfig()
	cfg.Cache.Ttl = "forever"
	_, err = cfg.CacheOptions()
	require.ErrorContains(t, err, "cache.ttl")
}
