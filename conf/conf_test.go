package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.APIServer.Port)
	assert.Equal(t, "auditflow", cfg.APIServer.Name)
	assert.Equal(t, 30*time.Second, cfg.APIServer.RequestTimeout)
	assert.Equal(t, "AF-Trace-Id", cfg.APIServer.Trace.TraceHeader)
	assert.Equal(t, "sqlite", cfg.DB.Dialect)
	assert.Equal(t, "memory", cfg.Cache.Mode)
	assert.Equal(t, []string{"log"}, cfg.Notify.Sinks)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yml")

	content := `
server:
  port: 9000
  request_timeout: 5s
  cors:
    enabled: true
    allowed_origins: ["https://audit.example.com"]
db:
  dialect: postgres
  dsn: postgres://auditflow@localhost/auditflow
notify:
  sinks: [log, redis]
auth:
  secret_key: from-file
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	t.Setenv("AUDITFLOW_CONFIG", file)
	t.Setenv("AUDITFLOW_AUTH_SECRET_KEY", "from-env")
	t.Setenv("AUDITFLOW_REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.APIServer.Port)
	assert.Equal(t, 5*time.Second, cfg.APIServer.RequestTimeout)
	assert.True(t, cfg.APIServer.CORS.Enabled)
	assert.Equal(t, []string{"https://audit.example.com"}, cfg.APIServer.CORS.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.DB.Dialect)
	assert.Equal(t, []string{"log", "redis"}, cfg.Notify.Sinks)
	assert.Equal(t, "from-env", cfg.Auth.SecretKey)
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("AUDITFLOW_CONFIG", filepath.Join(t.TempDir(), "missing.yml"))

	_, err := Load()
	require.Error(t, err)
}
