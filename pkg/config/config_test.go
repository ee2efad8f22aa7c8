package config

import (
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./models", cfg.Models.Dir)
	assert.Equal(t, 0.75, cfg.Prediction.ICURatio)
	assert.Equal(t, 0.7, cfg.Prediction.HighProbability)
	assert.Equal(t, 0.4, cfg.Prediction.ModerateProbability)
	assert.Equal(t, "quantile", cfg.Batch.Policy)
	assert.Equal(t, "none", cfg.Alerts.Channel)
	assert.Equal(t, time.Second, cfg.Alerts.RetryDelayBase)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("PREDICTION_ICU_RATIO", "1.0")
	t.Setenv("BATCH_POLICY", "fixed")
	t.Setenv("MODELS_DIR", "/srv/models")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 1.0, cfg.Prediction.ICURatio)
	assert.Equal(t, "fixed", cfg.Batch.Policy)
	assert.Equal(t, "/srv/models", cfg.Models.Dir)
}

func TestLoad_File(t *testing.T) {
	content := `
server:
  port: 7000
prediction:
  icu_ratio: 1.0
  high_extra_nurses: 4
batch:
  policy: fixed
  max_rows: 50
logging:
  level: debug
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 1.0, cfg.Prediction.ICURatio)
	assert.Equal(t, 4, cfg.Prediction.HighExtraNurses)
	assert.Equal(t, 50, cfg.Batch.MaxRows)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched keys keep their defaults
	assert.Equal(t, 0.7, cfg.Prediction.HighProbability)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad policy", func(c *Config) { c.Batch.Policy = "rolling" }, "batch.policy"},
		{"zero ratio", func(c *Config) { c.Prediction.ICURatio = 0 }, "icu_ratio"},
		{"tiny ratio", func(c *Config) { c.Prediction.ICURatio = 1e-12 }, "icu_ratio"},
		{"NaN ratio", func(c *Config) { c.Prediction.ICURatio = math.NaN() }, "icu_ratio"},
		{"infinite ratio", func(c *Config) { c.Prediction.ICURatio = math.Inf(1) }, "icu_ratio"},
		{"inverted probabilities", func(c *Config) { c.Prediction.ModerateProbability = 0.8 }, "probabilities"},
		{"inverted counts", func(c *Config) { c.Prediction.MediumEmergencyCount = 6 }, "medium_emergency_count"},
		{"telegram without token", func(c *Config) { c.Alerts.Channel = "telegram" }, "telegram_bot_token"},
		{"unknown channel", func(c *Config) { c.Alerts.Channel = "pager" }, "alerts.channel"},
		{"bad separator", func(c *Config) { c.Batch.ColumnSeparator = ";;" }, "column_separator"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad trusted proxy", func(c *Config) { c.Server.TrustedProxies = []string{"lb.internal"} }, "trusted_proxies"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAddresses(t *testing.T) {
	redis := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", redis.RedisAddr())

	server := ServerConfig{Host: "127.0.0.1", Port: 8080}
	assert.Equal(t, "127.0.0.1:8080", server.ServerAddr())

	batch := BatchConfig{MaxUploadMB: 2}
	assert.Equal(t, int64(2<<20), batch.MaxUploadBytes())
}

func TestLoad_VaultSecrets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/secret/data/hospital/alerts", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"data":{
			"ALERTS_TELEGRAM_BOT_TOKEN":"123:abc",
			"alerts.telegram_chat_id":"-100",
			"ALERTS_CHANNEL":"telegram",
			"SERVER_PORT":"9999",
			"UNRELATED":"ignored"
		}}}`))
	}))
	defer server.Close()

	t.Setenv("VAULT_ENABLED", "true")
	t.Setenv("VAULT_ADDR", server.URL)
	t.Setenv("VAULT_TOKEN", "root")
	t.Setenv("VAULT_PATH", "hospital/alerts")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "telegram", cfg.Alerts.Channel)
	assert.Equal(t, "123:abc", cfg.Alerts.TelegramBotToken)
	assert.Equal(t, "-100", cfg.Alerts.TelegramChatID)
	// the environment wins over vault by default
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_VaultIncomplete(t *testing.T) {
	t.Setenv("VAULT_ENABLED", "true")
	t.Setenv("VAULT_ADDR", "http://127.0.0.1:1")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_TrustedProxiesFromEnvironment(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Server.TrustedProxies)

	t.Setenv("SERVER_TRUSTED_PROXIES", "10.0.0.1, 172.16.0.0/12")
	cfg, err = Load("")
	require.NoError(t, err)

	assert.Len(t, cfg.Server.TrustedProxies, 2)
	assert.NoError(t, cfg.Validate())
}
