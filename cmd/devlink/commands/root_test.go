package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devlink/internal/app"
)

func testFlags(t *testing.T) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("devlink", pflag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "")
	fs.StringVar(&storeDir, "store", "", "")
	fs.StringVar(&relayURL, "relay", "", "")
	fs.StringVarP(&passphrase, "passphrase", "p", "", "")
	fs.StringVar(&logLevel, "log-level", "", "")
	fs.DurationVar(&pairTimeout, "timeout", 0, "")
	fs.StringVar(&challengeFile, "challenge-file", "", "")
	return fs
}

func TestResolveConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devlink.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
store_dir = "/from/file"
relay_url = "http://file:1"
pairing_timeout = "1m"
`), 0o600))

	env := map[string]string{
		app.EnvConfig: path,
		app.EnvRelay:  "http://env:2",
	}
	fs := testFlags(t)
	require.NoError(t, fs.Parse([]string{"--timeout", "45s", "-p", "flag-secret"}))

	cfg, err := resolveConfig(fs, func(k string) string { return env[k] })
	require.NoError(t, err)
	assert.Equal(t, "/from/file", cfg.StoreDir)
	assert.Equal(t, "http://env:2", cfg.RelayURL)
	assert.Equal(t, 45*time.Second, cfg.PairingTimeout)
	assert.Equal(t, "flag-secret", cfg.Passphrase)
}

func TestResolveConfigFlagBeatsEnv(t *testing.T) {
	fs := testFlags(t)
	require.NoError(t, fs.Parse([]string{"--store", "/from/flag", "--relay", "http://flag:3"}))

	env := map[string]string{app.EnvStore: "/from/env", app.EnvRelay: "http://env:2"}
	cfg, err := resolveConfig(fs, func(k string) string { return env[k] })
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.StoreDir)
	assert.Equal(t, "http://flag:3", cfg.RelayURL)
}

func TestResolveConfigBadFile(t *testing.T) {
	fs := testFlags(t)
	require.NoError(t, fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "missing.toml")}))
	_, err := resolveConfig(fs, func(string) string { return "" })
	assert.Error(t, err)
}
