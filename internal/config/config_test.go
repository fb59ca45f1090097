package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
server:
  port: 8080
database:
  host: db.local
  port: 5433
  user: kiosk
  password: secret
  database: kiosk
rabbitmq:
  host: mq.local
  user: guest
  password: guest
redis:
  host: cache.local
  snapshot_ttl_seconds: 30
estimator:
  default_seconds: 90
  decay: 0.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, 30*time.Second, cfg.Redis.SnapshotTTL())
	assert.Equal(t, 90*time.Second, cfg.Estimator.DefaultDuration())
	assert.Equal(t, 0.5, cfg.Estimator.Decay)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.local
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 5672, cfg.RabbitMQ.Port)
	assert.Equal(t, "/", cfg.RabbitMQ.VHost)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 10*time.Second, cfg.Redis.SnapshotTTL())
	assert.Equal(t, time.Minute, cfg.Estimator.DefaultDuration())
	assert.Equal(t, 0.8, cfg.Estimator.Decay)
}

func TestLoadMissingDatabaseHost(t *testing.T) {
	path := writeConfig(t, `
log_level: info
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "missing database host")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "::not yaml::")
	_, err := Load(path)
	assert.Error(t, err)
}
