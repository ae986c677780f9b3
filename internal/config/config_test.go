package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Registers the mexc builder used by the exchange section.
	_ "perpflow/pkg/exchange/mexc"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadHydratesExchangeSection(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	t.Setenv("TEST_MEXC_KEY", "key-from-env")

	dir := t.TempDir()
	writeFile(t, dir, "exchange.yaml", `
default: mexc
exchanges:
  mexc:
    type: mexc
    api_key: ${TEST_MEXC_KEY}
    api_secret: secret
    timeout: 10s
    market_poll_interval: 3s
`)
	mainPath := writeFile(t, dir, "app.yaml", `
Env: dev
LogLevel: debug
Exchange:
  File: exchange.yaml
`)

	cfg, err := Load(mainPath)
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.False(t, cfg.IsTestEnv())
	assert.Equal(t, filepath.Dir(mainPath), cfg.BaseDir())

	require.NotNil(t, cfg.Exchange.Value)
	ex := cfg.Exchange.Value.Exchanges["mexc"]
	require.NotNil(t, ex)
	assert.Equal(t, "key-from-env", ex.APIKey, "credentials expand from the environment")
	assert.Equal(t, 10*time.Second, ex.Timeout)
	assert.Equal(t, 3*time.Second, ex.MarketPollInterval)
}

func TestLoadWithoutExchangeSection(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	dir := t.TempDir()
	mainPath := writeFile(t, dir, "app.yaml", "Env: test\n")

	cfg, err := Load(mainPath)
	require.NoError(t, err)
	assert.True(t, cfg.IsTestEnv())
	assert.Nil(t, cfg.Exchange.Value)
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	dir := t.TempDir()
	mainPath := writeFile(t, dir, "app.yaml", "Env: staging\n")

	_, err := Load(mainPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid env")
}

func TestLoadSurfacesBrokenSectionFile(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	dir := t.TempDir()
	writeFile(t, dir, "exchange.yaml", "exchanges: {}\n")
	mainPath := writeFile(t, dir, "app.yaml", `
Env: test
Exchange:
  File: exchange.yaml
`)

	_, err := Load(mainPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchanges cannot be empty")
}
