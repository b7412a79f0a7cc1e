package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG_PATH", path)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	writeConfig(t, `
http:
  addr: ":8084"
postgres:
  dsn: "postgres://localhost:5432/chat"
`)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8084", cfg.HTTP.Addr)
	require.Equal(t, "chat-service", cfg.Logging.Service)
	require.Equal(t, "dev", cfg.Logging.Env)
	require.Equal(t, "std", cfg.Logging.Backend)
}

func TestLoadConfigDSNFromEnv(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://envhost:5432/chat")
	writeConfig(t, `
http:
  addr: ":8084"
`)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "postgres://envhost:5432/chat", cfg.Postgres.DSN)
}

func TestLoadConfigMissingAddr(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	writeConfig(t, `
postgres:
  dsn: "postgres://localhost:5432/chat"
`)

	_, err := LoadConfig()
	require.EqualError(t, err, "http.addr is required")
}

func TestLoadConfigMissingDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	writeConfig(t, `
http:
  addr: ":8084"
`)

	_, err := LoadConfig()
	require.EqualError(t, err, "postgres.dsn is required")
}
