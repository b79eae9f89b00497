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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, 60, cfg.Monitor.CheckInterval)
	assert.Equal(t, time.Second, cfg.Monitor.Throttle)
	assert.Equal(t, "https://eu.api.ovh.com", cfg.Source.BaseURL)
	assert.Equal(t, 587, cfg.Email.SMTPPort)
	assert.Equal(t, "servermon:state", cfg.Redis.Key)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
monitor:
  check_interval: 120
  throttle: 2s
source:
  subsidiary: IE
  proxies:
    - http://p1:8080
subscriptions:
  - plan_code: 24ska01
    name: KS-A
    datacenters: [rbx, gra]
  - plan_code: 24sk10
    notify_available: false
    notify_unavailable: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 120, cfg.Monitor.CheckInterval)
	assert.Equal(t, 2*time.Second, cfg.Monitor.Throttle)
	assert.Equal(t, "IE", cfg.Source.Subsidiary)
	assert.Equal(t, []string{"http://p1:8080"}, cfg.Source.Proxies)

	require.Len(t, cfg.Subscriptions, 2)
	assert.Equal(t, []string{"rbx", "gra"}, cfg.Subscriptions[0].Datacenters)
	assert.True(t, cfg.Subscriptions[0].WantsAvailable())
	assert.False(t, cfg.Subscriptions[1].WantsAvailable())
	assert.True(t, cfg.Subscriptions[1].NotifyUnavailable)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVERMON_APP_LOG_LEVEL", "warn")
	t.Setenv("SERVERMON_MONITOR_CHECK_INTERVAL", "90")
	t.Setenv("SERVERMON_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("SERVERMON_REDIS_ADDR", "localhost:6379")
	t.Setenv("SERVERMON_SOURCE_PROXIES", "http://a:1, http://b:2")

	cfg, err := Load(writeConfig(t, "app:\n  log_level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.App.LogLevel)
	assert.Equal(t, 90, cfg.Monitor.CheckInterval)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"http://a:1", "http://b:2"}, cfg.Source.Proxies)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, `
monitor:
  check_interval: 30
subscriptions:
  - plan_code: ""
  - plan_code: a
  - plan_code: a
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 60 seconds")
	assert.Contains(t, err.Error(), "plan_code is required")
	assert.Contains(t, err.Error(), "duplicate plan_code")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
