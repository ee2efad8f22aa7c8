package config

import (
	"context"
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zatekoja/hospitalintelligence/pkg/retry"
	"github.com/zatekoja/hospitalintelligence/pkg/secrets"
)

// MinICURatio is the smallest accepted share of emergencies needing an ICU bed
const MinICURatio = 0.01

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Models     ModelsConfig     `mapstructure:"models"`
	Prediction PredictionConfig `mapstructure:"prediction"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	OTEL       OTELConfig       `mapstructure:"otel"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Vault      VaultConfig      `mapstructure:"vault"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// TrustedProxies lists addresses or CIDR ranges allowed to set
	// X-Forwarded-For; SERVER_TRUSTED_PROXIES takes a comma separated list
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// ModelsConfig points at the pre-trained model artifacts
type ModelsConfig struct {
	Dir                   string `mapstructure:"dir"`
	ICUFile               string `mapstructure:"icu_file"`
	EmergencyFile         string `mapstructure:"emergency_file"`
	StaffFile             string `mapstructure:"staff_file"`
	StaffLabelEncoderFile string `mapstructure:"staff_label_encoder_file"`
	EmergencyLoadFile     string `mapstructure:"emergency_load_file"`
}

// PredictionConfig holds the thresholding and derivation parameters
type PredictionConfig struct {
	ICURatio             float64 `mapstructure:"icu_ratio"`
	HighProbability      float64 `mapstructure:"high_probability"`
	ModerateProbability  float64 `mapstructure:"moderate_probability"`
	HighEmergencyCount   int     `mapstructure:"high_emergency_count"`
	MediumEmergencyCount int     `mapstructure:"medium_emergency_count"`
	HighICUDemand        int     `mapstructure:"high_icu_demand"`
	MediumICUDemand      int     `mapstructure:"medium_icu_demand"`
	HighExtraNurses      int     `mapstructure:"high_extra_nurses"`
	MediumExtraNurses    int     `mapstructure:"medium_extra_nurses"`
	TrendHours           int     `mapstructure:"trend_hours"`
	TrendFloor           float64 `mapstructure:"trend_floor"`
	TrendNoise           float64 `mapstructure:"trend_noise"`
	TrendSeed            uint64  `mapstructure:"trend_seed"`
}

// BatchConfig holds CSV upload configuration
type BatchConfig struct {
	Policy          string `mapstructure:"policy"`
	MaxRows         int    `mapstructure:"max_rows"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb"`
	UploadsPerHour  int    `mapstructure:"uploads_per_hour"`
	ColumnSeparator string `mapstructure:"column_separator"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AlertsConfig holds critical alert delivery configuration
type AlertsConfig struct {
	Channel               string        `mapstructure:"channel"`
	TelegramBotToken      string        `mapstructure:"telegram_bot_token"`
	TelegramChatID        string        `mapstructure:"telegram_chat_id"`
	WhatsAppAccessToken   string        `mapstructure:"whatsapp_access_token"`
	WhatsAppPhoneNumberID string        `mapstructure:"whatsapp_phone_number_id"`
	WhatsAppRecipient     string        `mapstructure:"whatsapp_recipient"`
	MaxRetries            int           `mapstructure:"max_retries"`
	RetryDelayBase        time.Duration `mapstructure:"retry_delay_base"`
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Endpoint       string `mapstructure:"endpoint"`
	Enabled        bool   `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Env   string `mapstructure:"env"`
}

// VaultConfig points at an optional KV secret whose keys override config
// values, typically the alert channel credentials
type VaultConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Token     string        `mapstructure:"token"`
	Namespace string        `mapstructure:"namespace"`
	Mount     string        `mapstructure:"mount"`
	Path      string        `mapstructure:"path"`
	KVVersion int           `mapstructure:"kv_version"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Overwrite bool          `mapstructure:"overwrite"`
}

// Load reads configuration from an optional file and environment variables.
// Environment keys are the upper-cased config keys with dots replaced by
// underscores, e.g. SERVER_PORT or PREDICTION_ICU_RATIO.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if v.GetBool("vault.enabled") {
		if err := applyVaultSecrets(v); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// applyVaultSecrets copies the configured Vault secret into v. Secret keys
// may be written as config keys (alerts.telegram_bot_token) or as their
// environment names (ALERTS_TELEGRAM_BOT_TOKEN); unknown keys are ignored.
// Values already set by the config file or the environment win unless
// vault.overwrite is set.
func applyVaultSecrets(v *viper.Viper) error {
	client, err := secrets.NewVaultClient(secrets.VaultConfig{
		Addr:      v.GetString("vault.addr"),
		Token:     v.GetString("vault.token"),
		Namespace: v.GetString("vault.namespace"),
		Mount:     v.GetString("vault.mount"),
		Path:      v.GetString("vault.path"),
		KVVersion: v.GetInt("vault.kv_version"),
		Timeout:   v.GetDuration("vault.timeout"),
	}, retry.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to configure vault: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	values, err := client.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to load vault secrets: %w", err)
	}

	known := make(map[string]string)
	for _, key := range v.AllKeys() {
		known[envName(key)] = key
	}

	overwrite := v.GetBool("vault.overwrite")
	for name, value := range values {
		key, ok := known[envName(strings.ToLower(name))]
		if !ok || strings.HasPrefix(key, "vault.") {
			continue
		}
		if !overwrite && explicitlySet(v, key) {
			continue
		}
		v.Set(key, value)
	}
	return nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func explicitlySet(v *viper.Viper, key string) bool {
	if v.InConfig(key) {
		return true
	}
	_, ok := os.LookupEnv(envName(key))
	return ok
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("models.dir", "./models")
	v.SetDefault("models.icu_file", "icu_model.json")
	v.SetDefault("models.emergency_file", "emergency_model.json")
	v.SetDefault("models.staff_file", "staff_model.json")
	v.SetDefault("models.staff_label_encoder_file", "staff_label_encoder.json")
	v.SetDefault("models.emergency_load_file", "emergency_load_model.json")

	v.SetDefault("prediction.icu_ratio", 0.75)
	v.SetDefault("prediction.high_probability", 0.7)
	v.SetDefault("prediction.moderate_probability", 0.4)
	v.SetDefault("prediction.high_emergency_count", 6)
	v.SetDefault("prediction.medium_emergency_count", 4)
	v.SetDefault("prediction.high_icu_demand", 4)
	v.SetDefault("prediction.medium_icu_demand", 3)
	v.SetDefault("prediction.high_extra_nurses", 3)
	v.SetDefault("prediction.medium_extra_nurses", 1)
	v.SetDefault("prediction.trend_hours", 12)
	v.SetDefault("prediction.trend_floor", 20.0)
	v.SetDefault("prediction.trend_noise", 15.0)
	v.SetDefault("prediction.trend_seed", 42)

	v.SetDefault("batch.policy", "quantile")
	v.SetDefault("batch.max_rows", 10000)
	v.SetDefault("batch.max_upload_mb", 5)
	v.SetDefault("batch.uploads_per_hour", 30)
	v.SetDefault("batch.column_separator", ",")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("alerts.channel", "none")
	v.SetDefault("alerts.telegram_bot_token", "")
	v.SetDefault("alerts.telegram_chat_id", "")
	v.SetDefault("alerts.whatsapp_access_token", "")
	v.SetDefault("alerts.whatsapp_phone_number_id", "")
	v.SetDefault("alerts.whatsapp_recipient", "")
	v.SetDefault("alerts.max_retries", 3)
	v.SetDefault("alerts.retry_delay_base", "1s")

	v.SetDefault("otel.service_name", "hospital-intelligence")
	v.SetDefault("otel.service_version", "1.0.0")
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.env", "production")

	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.addr", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.mount", "secret")
	v.SetDefault("vault.path", "")
	v.SetDefault("vault.kv_version", 2)
	v.SetDefault("vault.timeout", "5s")
	v.SetDefault("vault.overwrite", false)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	for _, proxy := range c.Server.TrustedProxies {
		proxy = strings.TrimSpace(proxy)
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("server.trusted_proxies: %q is not an address or CIDR range", proxy)
			}
		}
	}

	if c.Models.Dir == "" {
		return fmt.Errorf("models.dir is required")
	}
	if c.Models.ICUFile == "" || c.Models.EmergencyFile == "" || c.Models.StaffFile == "" || c.Models.EmergencyLoadFile == "" {
		return fmt.Errorf("models: icu, emergency, staff and emergency_load files are required")
	}

	p := c.Prediction
	if math.IsNaN(p.ICURatio) || math.IsInf(p.ICURatio, 0) || p.ICURatio < MinICURatio {
		return fmt.Errorf("prediction.icu_ratio must be a finite value of at least %g", MinICURatio)
	}
	if p.ModerateProbability < 0 || p.HighProbability > 1 || p.ModerateProbability >= p.HighProbability {
		return fmt.Errorf("prediction probabilities must satisfy 0 <= moderate < high <= 1")
	}
	if p.MediumEmergencyCount >= p.HighEmergencyCount {
		return fmt.Errorf("prediction.medium_emergency_count must be below high_emergency_count")
	}
	if p.MediumICUDemand >= p.HighICUDemand {
		return fmt.Errorf("prediction.medium_icu_demand must be below high_icu_demand")
	}
	if p.HighExtraNurses < 0 || p.MediumExtraNurses < 0 {
		return fmt.Errorf("prediction extra nurses must not be negative")
	}
	if p.TrendHours < 1 {
		return fmt.Errorf("prediction.trend_hours must be at least 1")
	}

	validPolicies := map[string]bool{"fixed": true, "quantile": true}
	if !validPolicies[c.Batch.Policy] {
		return fmt.Errorf("batch.policy must be one of: fixed, quantile")
	}
	if c.Batch.MaxRows < 1 {
		return fmt.Errorf("batch.max_rows must be at least 1")
	}
	if c.Batch.MaxUploadMB < 1 {
		return fmt.Errorf("batch.max_upload_mb must be at least 1")
	}
	if len([]rune(c.Batch.ColumnSeparator)) != 1 {
		return fmt.Errorf("batch.column_separator must be a single character")
	}

	switch c.Alerts.Channel {
	case "none":
	case "telegram":
		if c.Alerts.TelegramBotToken == "" || c.Alerts.TelegramChatID == "" {
			return fmt.Errorf("alerts.telegram_bot_token and alerts.telegram_chat_id are required for the telegram channel")
		}
	case "whatsapp":
		if c.Alerts.WhatsAppAccessToken == "" || c.Alerts.WhatsAppPhoneNumberID == "" || c.Alerts.WhatsAppRecipient == "" {
			return fmt.Errorf("alerts.whatsapp_* settings are required for the whatsapp channel")
		}
	default:
		return fmt.Errorf("alerts.channel must be one of: none, telegram, whatsapp")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	return nil
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ServerAddr returns the listen address
func (c *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxUploadBytes returns the upload size limit in bytes
func (c *BatchConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
