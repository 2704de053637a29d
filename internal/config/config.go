package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"fare-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Awards    AwardsConfig    `mapstructure:"awards"`
	Handshake HandshakeConfig `mapstructure:"handshake"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig locates the embedded monitor store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SchedulerConfig governs refresh and polling cadence.
type SchedulerConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

// AwardsConfig covers award-search API access.
type AwardsConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	TokenPath      string        `mapstructure:"token_path"`
	Source         string        `mapstructure:"source"`
	OrderBy        string        `mapstructure:"order_by"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// HandshakeConfig locates the shared cash-checker documents.
type HandshakeConfig struct {
	RequestPath string `mapstructure:"request_path"`
	ResultPath  string `mapstructure:"result_path"`
}

// AlertingConfig defines the alert queue and optional delivery.
type AlertingConfig struct {
	QueuePath     string         `mapstructure:"queue_path"`
	DrainInterval time.Duration  `mapstructure:"drain_interval"`
	Telegram      TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FAREWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "farewatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.path", "data/farewatch.db")

	v.SetDefault("scheduler.refresh_interval", "1h")
	v.SetDefault("scheduler.startup_delay", "90s")
	v.SetDefault("scheduler.poll_interval", "30s")

	v.SetDefault("awards.base_url", "https://seats.aero/partnerapi")
	v.SetDefault("awards.token_path", "secrets/award-api-token")
	v.SetDefault("awards.source", "qantas")
	v.SetDefault("awards.order_by", "lowest_mileage")
	v.SetDefault("awards.request_timeout", "30s")
	v.SetDefault("awards.user_agent", "farewatch/1.0")

	v.SetDefault("handshake.request_path", "data/cash-requests.json")
	v.SetDefault("handshake.result_path", "data/cash-results.json")

	v.SetDefault("alerting.queue_path", "data/alerts.json")
	v.SetDefault("alerting.drain_interval", "1m")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.RefreshInterval <= 0 {
		return fmt.Errorf("scheduler.refresh_interval must be greater than zero")
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler.poll_interval must be greater than zero")
	}
	if c.Handshake.RequestPath == "" || c.Handshake.ResultPath == "" {
		return fmt.Errorf("handshake.request_path and handshake.result_path are required")
	}
	if c.Alerting.QueuePath == "" {
		return fmt.Errorf("alerting.queue_path is required")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
