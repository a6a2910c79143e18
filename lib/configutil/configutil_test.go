package configutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string `json:"name"`
	Timeout string `json:"timeout"`
	Retries int    `json:"retries"`
}

func writeFile(t testing.TB, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.json5"), `{
		// comments are allowed
		name: "base",
		timeout: "60s",
	}`)
	writeFile(t, filepath.Join(dir, "app.local.json5"), `{ name: "local" }`)

	config, err := ReadConfig[testConfig](filepath.Join(dir, "app.json5"))
	require.NoError(t, err)
	require.Equal(t, testConfig{Name: "local", Timeout: "60s"}, config)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "app.json5"))
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.json5"), `{ name: `)

	_, err := ReadConfig[testConfig](filepath.Join(dir, "app.json5"))
	require.Error(t, err)
	require.False(t, errors.Is(err, os.ErrNotExist))
}

func TestReadWithDefaults(t *testing.T) {
	dir := t.TempDir()
	defaults := testConfig{Name: "default", Timeout: "60s", Retries: 3}

	config, err := ReadWithDefaults(filepath.Join(dir, "app.json5"), defaults)
	require.NoError(t, err)
	require.Equal(t, defaults, config)

	writeFile(t, filepath.Join(dir, "app.json5"), `{ timeout: "5s" }`)
	config, err = ReadWithDefaults(filepath.Join(dir, "app.json5"), defaults)
	require.NoError(t, err)
	require.Equal(t, testConfig{Name: "default", Timeout: "5s", Retries: 3}, config)
}

func TestLocalName(t *testing.T) {
	require.Equal(t, "dir/app.local.json5", localName("dir/app.json5"))
	require.Equal(t, "app.local", localName("app"))
}
