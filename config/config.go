// Package config resolves process-wide configuration from the environment
// once at startup. Components never read the environment themselves; they
// receive the values they need explicitly, which keeps them pure functions
// of their configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries every tunable the service reads.
type Config struct {
	ListenAddr     string `mapstructure:"LISTEN_ADDR"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	CaptchaMode      string `mapstructure:"CAPTCHA_MODE"`
	TurnstileSecret  string `mapstructure:"TURNSTILE_SECRET"`
	TurnstileSiteKey string `mapstructure:"TURNSTILE_SITE_KEY"`
	HCaptchaSecret   string `mapstructure:"HCAPTCHA_SECRET"`
	HCaptchaSiteKey  string `mapstructure:"HCAPTCHA_SITE_KEY"`

	BotToken      string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	ChannelID     string `mapstructure:"TELEGRAM_CHANNEL_ID"`
	ScratchChatID string `mapstructure:"TELEGRAM_SCRATCH_CHAT_ID"`

	SigningSecret    string `mapstructure:"SIGNING_SECRET"`
	MaxAttachmentMB  int    `mapstructure:"MAX_ATTACHMENT_SIZE_MB"`
	RateLimitMinutes int    `mapstructure:"RATE_LIMIT_MINUTES"`
}

var keys = []string{
	"LISTEN_ADDR", "ALLOWED_ORIGINS",
	"CAPTCHA_MODE", "TURNSTILE_SECRET", "TURNSTILE_SITE_KEY",
	"HCAPTCHA_SECRET", "HCAPTCHA_SITE_KEY",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHANNEL_ID", "TELEGRAM_SCRATCH_CHAT_ID",
	"SIGNING_SECRET", "MAX_ATTACHMENT_SIZE_MB", "RATE_LIMIT_MINUTES",
}

var required = []string{
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHANNEL_ID", "TELEGRAM_SCRATCH_CHAT_ID", "SIGNING_SECRET",
}

// Load reads the environment into a Config and validates required values.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("CAPTCHA_MODE", "turnstile")
	v.SetDefault("MAX_ATTACHMENT_SIZE_MB", 10)
	v.SetDefault("RATE_LIMIT_MINUTES", 1)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	for _, key := range required {
		if v.GetString(key) == "" {
			return nil, fmt.Errorf("config: missing env %s", key)
		}
	}
	if cfg.MaxAttachmentMB <= 0 {
		return nil, fmt.Errorf("config: MAX_ATTACHMENT_SIZE_MB must be positive, got %d", cfg.MaxAttachmentMB)
	}
	if cfg.RateLimitMinutes <= 0 {
		return nil, fmt.Errorf("config: RATE_LIMIT_MINUTES must be positive, got %d", cfg.RateLimitMinutes)
	}
	return &cfg, nil
}

// MaxAttachmentBytes returns the attachment size limit in bytes.
func (c *Config) MaxAttachmentBytes() int64 {
	return int64(c.MaxAttachmentMB) << 20
}

// RateLimitWindow returns the rate-limit freshness window.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitMinutes) * time.Minute
}

// Origins returns the parsed CORS allow-list.
func (c *Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return origins
}

// CaptchaSecret returns the shared secret for the configured captcha mode.
func (c *Config) CaptchaSecret() string {
	switch strings.ToLower(c.CaptchaMode) {
	case "turnstile":
		return c.TurnstileSecret
	case "hcaptcha":
		return c.HCaptchaSecret
	}
	return ""
}

// CaptchaSiteKey returns the public site key for the configured captcha
// mode, served to the frontend via /config.
func (c *Config) CaptchaSiteKey() string {
	switch strings.ToLower(c.CaptchaMode) {
	case "turnstile":
		return c.TurnstileSiteKey
	case "hcaptcha":
		return c.HCaptchaSiteKey
	}
	return ""
}
