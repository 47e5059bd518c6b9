package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "farmcart.yaml")
	body := []byte(`
server:
  port: 9090
storage:
  driver: memory
delivery:
  charge: 45
auth:
  master_email: boss@example.com
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))
	t.Setenv("FARMCART_JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 45.0, cfg.Delivery.Charge)
	assert.Equal(t, "boss@example.com", cfg.Auth.MasterEmail)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	// 未覆盖的字段保持默认值
	assert.Equal(t, 8081, cfg.AdminServer.Port)
	assert.Equal(t, 5.0, cfg.Delivery.FreeFromKg)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestServerConfig(t *testing.T) {
	s := ServerConfig{Port: 8080}
	assert.Equal(t, "0.0.0.0:8080", s.Addr())
	assert.Equal(t, time.Duration(0), s.RequestTimeout())

	s.RequestTimeoutSeconds = 3
	assert.Equal(t, 3*time.Second, s.RequestTimeout())
}
