package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/linemk/recipe-exchange/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "config_test_*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())
	return tmpFile.Name()
}

func TestMustLoadByPath_Success(t *testing.T) {
	// Устанавливаем обязательные переменные окружения
	t.Setenv("DB_PASSWORD", "mypassword")
	t.Setenv("JWT_SECRET", "mysecret")

	path := writeConfig(t, `
env: "local"
http_server:
  address: "localhost:8080"
  timeout: "4s"
  idle_timeout: "60s"
database:
  host: "localhost"
  port: 5432
  user: "postgres"
  name: "recipes"
jwt:
  token_ttl: 60
migrations:
  path: "./migrations"
ledger:
  max_retries: 5
  retry_base: "50ms"
nats:
  url: "nats://localhost:4222"
  subject_prefix: "cookbook"
redis:
  addr: "localhost:6379"
  idempotency_ttl: "1h"
`)

	cfg := config.MustLoadByPath(path)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "localhost:8080", cfg.HTTPServer.Address)
	assert.Equal(t, 4*time.Second, cfg.HTTPServer.Timeout)
	assert.Equal(t, 60*time.Second, cfg.HTTPServer.IdleTimeout)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "mypassword", cfg.Database.Password)
	assert.Equal(t, "recipes", cfg.Database.Name)
	assert.Equal(t, "mysecret", cfg.JWT.Secret)
	assert.Equal(t, 60, cfg.JWT.TokenTTL)
	assert.Equal(t, "./migrations", cfg.Migrations.Path)
	assert.Equal(t, uint64(5), cfg.Ledger.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Ledger.RetryBase)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "cookbook", cfg.NATS.SubjectPrefix)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Redis.IdempotencyTTL)
}

func TestMustLoadByPath_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "mypassword")
	t.Setenv("JWT_SECRET", "mysecret")

	path := writeConfig(t, `
database:
  user: "postgres"
  name: "recipes"
`)

	cfg := config.MustLoadByPath(path)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, uint64(3), cfg.Ledger.MaxRetries)
	assert.Equal(t, 20*time.Millisecond, cfg.Ledger.RetryBase)
	assert.Equal(t, "recipes", cfg.NATS.SubjectPrefix)
	assert.Empty(t, cfg.NATS.URL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Redis.IdempotencyTTL)
}

func TestMustLoadByPath_FileNotFound(t *testing.T) {
	// Ожидаем панику, если файла не существует
	assert.Panics(t, func() {
		config.MustLoadByPath("non_existent_config.yaml")
	})
}
