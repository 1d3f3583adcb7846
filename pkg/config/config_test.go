package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
	"github.com/YuminosukeSato/cropadvisor/pkg/log"
)

var configEnv = []string{
	"CROPADVISOR_MODELS_DIR",
	"CROPADVISOR_ADDRESS",
	"PORT",
	"LOG_LEVEL",
	"CROPADVISOR_READ_TIMEOUT",
	"CROPADVISOR_WRITE_TIMEOUT",
	"CROPADVISOR_SHUTDOWN_TIMEOUT",
}

// clearEnv は設定用の環境変数をテスト中だけ未設定にする
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "0.0.0.0:5000", cfg.ListenAddr())
	assert.Equal(t, log.LevelInfo, cfg.Level())
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("CROPADVISOR_MODELS_DIR", "/srv/models")
	t.Setenv("PORT", "8080")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CROPADVISOR_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/models", cfg.ModelsDir)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, log.LevelDebug, cfg.Level())
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, Default().ReadTimeout, cfg.ReadTimeout)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("PORT=9090\nCROPADVISOR_ADDRESS=127.0.0.1\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.ListenAddr())
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "PORT", "70000"},
		{"port not a number", "PORT", "http"},
		{"unknown level", "LOG_LEVEL", "verbose"},
		{"negative timeout", "CROPADVISOR_WRITE_TIMEOUT", "-1s"},
		{"timeout not a duration", "CROPADVISOR_SHUTDOWN_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.ModelsDir = ""
	err := cfg.Validate()
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "models_dir", ve.ParamName)
}
