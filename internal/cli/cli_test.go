package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/exposure/internal/model"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	require.NoError(t, setDefaults(v))
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()
	return v
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newTestViper(t))
	require.NoError(t, err)

	def := model.DefaultConfig()
	assert.Equal(t, def.HTTP, cfg.HTTP)
	assert.Equal(t, def.Scan, cfg.Scan)
	assert.Equal(t, def.Sources, cfg.Sources)
	assert.Equal(t, def.Risk.TypeWeights, cfg.Risk.TypeWeights)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("EXPOSURE_SCAN_BUDGET", "3m")
	t.Setenv("EXPOSURE_HTTP_MAX_RETRIES", "5")

	cfg, err := loadConfig(newTestViper(t))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute, cfg.Scan.Budget)
	assert.Equal(t, 5, cfg.HTTP.MaxRetries)
	assert.Equal(t, model.DefaultConfig().Dedupe, cfg.Dedupe)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  workers: 7\nlog:\n  level: warn\n"), 0o600))

	v := newTestViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Scan.Workers)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, model.DefaultConfig().Scan.Budget, cfg.Scan.Budget)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Exposure Configuration File")
	assert.Contains(t, string(data), "scan:")

	v := newTestViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig().Scan, cfg.Scan)

	assert.Error(t, writeDefaultConfig(path), "existing file must not be overwritten")
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"Jane Roe":           "Jane-Roe",
		"jane@x.com":         "jane_at_x.com",
		"../etc/passwd":      ".._etc_passwd",
		"  ":                 "subject",
		"..":                 "subject",
		"a:b*c?d\"e<f>g|h\\": "a_b_c_d_e_f_g_h_",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}
