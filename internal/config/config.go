package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"feedwatch/internal/domain"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	// Storage
	DataEncryptKey string `mapstructure:"DATA_ENCRYPT_KEY"`
	DataDir        string `mapstructure:"DATA_DIR" validate:"required"`
	LinksFile      string `mapstructure:"LINKS_FILE" validate:"required"`
	StorageBackend string `mapstructure:"STORAGE_BACKEND" validate:"oneof=file badger"`
	BadgerDBPath   string `mapstructure:"BADGERDB_PATH"`
	Timezone       string `mapstructure:"TIMEZONE"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"oneof=json text"`

	// Rendering
	ChromePath     string        `mapstructure:"CHROME_PATH"`
	Headless       bool          `mapstructure:"HEADLESS"`
	UserAgent      string        `mapstructure:"USER_AGENT"`
	PageTimeout    time.Duration `mapstructure:"PAGE_TIMEOUT" validate:"gt=0"`
	SettleDelay    time.Duration `mapstructure:"SETTLE_DELAY" validate:"gte=0"`
	WaitTimeout    time.Duration `mapstructure:"WAIT_TIMEOUT" validate:"gte=0"`
	PostWaitDelay  time.Duration `mapstructure:"POST_WAIT_DELAY" validate:"gte=0"`
	EntityInterval time.Duration `mapstructure:"ENTITY_INTERVAL" validate:"gte=0"`

	// Static page
	OutputHTML         string `mapstructure:"OUTPUT_HTML"`
	GoogleSearchDomain string `mapstructure:"GOOGLE_SEARCH_DOMAIN"`

	// Mail
	QQMail     string `mapstructure:"QQ_MAIL"`
	QQAuthCode string `mapstructure:"QQ_AUTH_CODE"`
	MailTo     string `mapstructure:"MAIL_TO"`
	SMTPHost   string `mapstructure:"SMTP_HOST"`
	SMTPPort   int    `mapstructure:"SMTP_PORT"`

	// WeChat worker
	WXWorkerURL string `mapstructure:"WX_WORKER_URL"`
	WXToken     string `mapstructure:"WX_TOKEN"`
	SiteURL     string `mapstructure:"SITE_URL"`

	// Telegram
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `mapstructure:"TELEGRAM_CHAT_ID"`
}

var defaults = map[string]any{
	"DATA_ENCRYPT_KEY":     "",
	"DATA_DIR":             "data",
	"LINKS_FILE":           "links.txt",
	"STORAGE_BACKEND":      "file",
	"BADGERDB_PATH":        "./badger_data",
	"TIMEZONE":             "Asia/Shanghai",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
	"CHROME_PATH":          "",
	"HEADLESS":             true,
	"USER_AGENT":           "",
	"PAGE_TIMEOUT":         "90s",
	"SETTLE_DELAY":         "3s",
	"WAIT_TIMEOUT":         "8s",
	"POST_WAIT_DELAY":      "2s",
	"ENTITY_INTERVAL":      "1s",
	"OUTPUT_HTML":          "index.html",
	"GOOGLE_SEARCH_DOMAIN": "",
	"QQ_MAIL":              "",
	"QQ_AUTH_CODE":         "",
	"MAIL_TO":              "",
	"SMTP_HOST":            "smtp.qq.com",
	"SMTP_PORT":            465,
	"WX_WORKER_URL":        "",
	"WX_TOKEN":             "",
	"SITE_URL":             "https://hj.meaw.top",
	"TELEGRAM_BOT_TOKEN":   "",
	"TELEGRAM_CHAT_ID":     "",
}

// LoadConfig reads configuration from path/config.yaml, if present, and the
// environment. Environment variables win over the file.
//
// A missing DATA_ENCRYPT_KEY is not an error here; each command decides
// whether it can run without one.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Every key needs a default so Unmarshal sees environment overrides.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("%w: error reading config file: %w", domain.ErrConfig, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: unable to decode into struct: %w", domain.ErrConfig, err)
	}

	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: invalid configuration: %w", domain.ErrConfig, err)
	}
	return cfg, nil
}

// Location returns the time zone used for date keys and recency.
func (c Config) Location() (*time.Location, error) {
	name := c.Timezone
	if name == "" {
		name = "Asia/Shanghai"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown TIMEZONE %q: %w", domain.ErrConfig, name, err)
	}
	return loc, nil
}

// MailRecipient is MAIL_TO, or the sender when unset.
func (c Config) MailRecipient() string {
	if c.MailTo != "" {
		return c.MailTo
	}
	return c.QQMail
}
