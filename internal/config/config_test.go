package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassista/go_dbproxy/internal/proxy"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8080,
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       10 * time.Second,
			IdleTimeout:        120 * time.Second,
			ShutDownTimeout:    5 * time.Second,
			RequestTimeout:     1000 * time.Millisecond,
			CORSAllowedOrigins: "*",
		},
		Data: DataConfig{
			FilePath:        "/tmp/records.json",
			PersistInterval: 5 * time.Second,
		},
		Proxy: proxy.Options{Cipher: "aes-256-cbc"},
		Misc: MiscConfig{
			GinMode:  "release",
			LogLevel: "info",
		},
	}
}

func TestConfig_Validate_Valid(t *testing.T) {
	assert.NoError(t, validConfig().validate())
}

func TestConfig_Validate_EmptyFilePath(t *testing.T) {
	cfg := validConfig()
	cfg.Data.FilePath = ""
	assert.Error(t, cfg.validate())
}

func TestConfig_Validate_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero port", 0},
		{"negative port", -1},
		{"too high port", 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port
			assert.Error(t, cfg.validate())
		})
	}
}

func TestConfig_Validate_ZeroPersistInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Data.PersistInterval = 0
	assert.Error(t, cfg.validate())
}

func TestConfig_Validate_InvalidGinMode(t *testing.T) {
	cfg := validConfig()
	cfg.Misc.GinMode = "verbose"
	assert.Error(t, cfg.validate())
}

func TestConfig_Validate_UnsupportedCipher(t *testing.T) {
	cfg := validConfig()
	cfg.Proxy.Cipher = "rot13"
	err := cfg.validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, proxy.ErrUnsupportedCipher)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8084, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.PersistTimeout)
	assert.Equal(t, "./config/data/records.json", cfg.Data.FilePath)
	assert.Equal(t, 5*time.Second, cfg.Data.PersistInterval)
	assert.True(t, cfg.Data.Watch)
	assert.Equal(t, "", cfg.Proxy.EncryptionKey)
	assert.Equal(t, proxy.DefaultCipher, cfg.Proxy.Cipher)
	assert.Equal(t, "release", cfg.Misc.GinMode)
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9090
data:
  file_path: /var/lib/records.json
  persist_interval: 2s
  watch: false
proxy:
  encryption_key: t3stK3y
  cipher: aes-128-cbc
misc:
  log_level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/records.json", cfg.Data.FilePath)
	assert.Equal(t, 2*time.Second, cfg.Data.PersistInterval)
	assert.False(t, cfg.Data.Watch)
	assert.Equal(t, "t3stK3y", cfg.Proxy.EncryptionKey)
	assert.Equal(t, "aes-128-cbc", cfg.Proxy.Cipher)
	assert.Equal(t, "debug", cfg.Misc.LogLevel)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("GO_DBPROXY_PROXY_ENCRYPTION_KEY", "fromEnv")
	t.Setenv("GO_DBPROXY_SERVER_PORT", "7070")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "fromEnv", cfg.Proxy.EncryptionKey)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadConfig_InvalidCipher(t *testing.T) {
	t.Setenv("GO_DBPROXY_PROXY_CIPHER", "blowfish")

	_, err := LoadConfig(t.TempDir())
	assert.ErrorIs(t, err, proxy.ErrUnsupportedCipher)
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0644))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}
