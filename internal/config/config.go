/**
 * @description
 * Configuration for the lookup service. Settings come from environment
 * variables, optionally seeded from a .env file in the given directory.
 *
 * @dependencies
 * - github.com/spf13/viper: For configuration management.
 */
package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	MBBankUsername        string `mapstructure:"MB_BANK_USERNAME"`
	MBBankPassword        string `mapstructure:"MB_BANK_PASSWORD"`
	MBBankBaseURL         string `mapstructure:"MB_BANK_BASE_URL"`
	MBBankAuthToken       string `mapstructure:"MB_BANK_AUTH_TOKEN"`
	MBBankDeviceID        string `mapstructure:"MB_BANK_DEVICE_ID"`
	MBBankSelfBin         string `mapstructure:"MB_BANK_SELF_BIN"`
	MBBankDebitAccount    string `mapstructure:"MB_BANK_DEBIT_ACCOUNT"`
	MBBankKeyVersion      string `mapstructure:"MB_BANK_KEY_VERSION"`
	MBBankKeyMaterialPath string `mapstructure:"MB_BANK_KEY_MATERIAL_PATH"`
	MBBankEncoderEntry    string `mapstructure:"MB_BANK_ENCODER_ENTRY"`
	LoginMaxAttempts      int    `mapstructure:"MB_BANK_LOGIN_MAX_ATTEMPTS"`
	LoginTimeoutSeconds   int    `mapstructure:"MB_BANK_LOGIN_TIMEOUT_SECONDS"`
	HTTPTimeoutSeconds    int    `mapstructure:"MB_BANK_HTTP_TIMEOUT_SECONDS"`
	KeepAliveIntervalSecs int    `mapstructure:"KEEP_ALIVE_INTERVAL_SECONDS"`
	CaptchaScale          int    `mapstructure:"CAPTCHA_SCALE"`
	OCRLanguage           string `mapstructure:"OCR_LANGUAGE"`
	OCRPageSegMode        string `mapstructure:"OCR_PAGE_SEG_MODE"`
	ServerPort            string `mapstructure:"SERVER_PORT"`
	LogLevel              string `mapstructure:"LOG_LEVEL"`
	RedisURL              string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix  string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	LookupRateLimitPerMin int    `mapstructure:"LOOKUP_RATE_LIMIT_PER_MINUTE"`
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	EventsExchange        string `mapstructure:"EVENTS_EXCHANGE"`
	CORSAllowedOriginsRaw string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

var boundKeys = []string{
	"MB_BANK_USERNAME",
	"MB_BANK_PASSWORD",
	"MB_BANK_BASE_URL",
	"MB_BANK_AUTH_TOKEN",
	"MB_BANK_DEVICE_ID",
	"MB_BANK_SELF_BIN",
	"MB_BANK_DEBIT_ACCOUNT",
	"MB_BANK_KEY_VERSION",
	"MB_BANK_KEY_MATERIAL_PATH",
	"MB_BANK_ENCODER_ENTRY",
	"MB_BANK_LOGIN_MAX_ATTEMPTS",
	"MB_BANK_LOGIN_TIMEOUT_SECONDS",
	"MB_BANK_HTTP_TIMEOUT_SECONDS",
	"KEEP_ALIVE_INTERVAL_SECONDS",
	"CAPTCHA_SCALE",
	"OCR_LANGUAGE",
	"OCR_PAGE_SEG_MODE",
	"SERVER_PORT",
	"LOG_LEVEL",
	"REDIS_URL",
	"REDIS_RATE_LIMIT_PREFIX",
	"LOOKUP_RATE_LIMIT_PER_MINUTE",
	"RABBITMQ_URL",
	"EVENTS_EXCHANGE",
	"CORS_ALLOWED_ORIGINS",
}

// LoadConfig reads configuration from path/.env and the environment.
func LoadConfig(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = "."
	}
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("MB_BANK_BASE_URL", "https://online.mbbank.com.vn")
	viper.SetDefault("MB_BANK_SELF_BIN", "970422")
	viper.SetDefault("MB_BANK_KEY_VERSION", "0")
	viper.SetDefault("MB_BANK_ENCODER_ENTRY", "bder")
	viper.SetDefault("MB_BANK_LOGIN_MAX_ATTEMPTS", 10)
	viper.SetDefault("MB_BANK_LOGIN_TIMEOUT_SECONDS", 120)
	viper.SetDefault("MB_BANK_HTTP_TIMEOUT_SECONDS", 30)
	viper.SetDefault("KEEP_ALIVE_INTERVAL_SECONDS", 60)
	viper.SetDefault("CAPTCHA_SCALE", 1)
	viper.SetDefault("OCR_LANGUAGE", "eng")
	viper.SetDefault("OCR_PAGE_SEG_MODE", "single_line")
	viper.SetDefault("SERVER_PORT", "3000")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "lookup-bank:rate_limit")
	viper.SetDefault("LOOKUP_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("EVENTS_EXCHANGE", "lookup_bank.events")

	// Bind envs explicitly so Unmarshal sees them.
	for _, key := range boundKeys {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "component", "config", "error", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Hosting platforms inject PORT.
	if port := strings.TrimSpace(viper.GetString("PORT")); port != "" {
		config.ServerPort = port
	}

	config.MBBankUsername = strings.TrimSpace(config.MBBankUsername)
	if config.MBBankUsername == "" || config.MBBankPassword == "" {
		return nil, errors.New("MB_BANK_USERNAME and MB_BANK_PASSWORD must be set")
	}
	// The portal bundle only ships a WebAssembly module, so the JavaScript
	// encoder routine has to be hosted somewhere and pointed at explicitly.
	config.MBBankKeyMaterialPath = strings.TrimSpace(config.MBBankKeyMaterialPath)
	if config.MBBankKeyMaterialPath == "" {
		return nil, errors.New("MB_BANK_KEY_MATERIAL_PATH must be set to the JavaScript encoder routine")
	}
	if config.CaptchaScale < 1 {
		config.CaptchaScale = 1
	}

	return &config, nil
}

// LoginTimeout is the upper bound of one shared login.
func (c *Config) LoginTimeout() time.Duration {
	return time.Duration(c.LoginTimeoutSeconds) * time.Second
}

// HTTPTimeout bounds each outbound portal request.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// KeepAliveInterval is the delay between keep-alive probes.
func (c *Config) KeepAliveInterval() time.Duration {
	return time.Duration(c.KeepAliveIntervalSecs) * time.Second
}

// CORSAllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) CORSAllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOriginsRaw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
