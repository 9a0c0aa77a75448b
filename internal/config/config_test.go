package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REELWATCH_DATABASE_URL", "mongodb://localhost:27017")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers.Search)
	assert.Equal(t, int64(50*1024*1024), cfg.Import.SampleMaxBytes)
	assert.Equal(t, "0.0.0.0:8090", cfg.Server.Address())
}

func TestLoad_EnvOverridesDottedKeys(t *testing.T) {
	t.Setenv("REELWATCH_WORKERS_SEARCH", "9")
	t.Setenv("REELWATCH_RETRY_BASE_MS", "250")
	t.Setenv("REELWATCH_DATABASE_URL", "mongodb://db1:27017")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Workers.Search)
	assert.Equal(t, 250, cfg.Retry.BaseMs)
	assert.Equal(t, "mongodb://db1:27017", cfg.Database.URL)
}

func TestValidate_RejectsMissingDatabaseURL(t *testing.T) {
	cfg := Default()
	cfg.Database.URL = ""
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidate_RejectsZeroWorkerCounts(t *testing.T) {
	cfg := Default()
	cfg.Workers.Import = 0
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidate_RejectsOutOfRangePort(t *testing.T) {
	cfg := Default()
	cfg.Server.ListenPort = 70000
	err := cfg.Validate()
	require.Error(t, err)
}

func TestRetryConfig_DurationHelpers(t *testing.T) {
	r := RetryConfig{BaseMs: 500, CapMs: 60000}
	assert.Equal(t, 500e6, float64(r.Base()))
	assert.Equal(t, 60000e6, float64(r.Cap()))
}
