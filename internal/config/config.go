package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"adbudget/internal/analytics"
	"adbudget/internal/budget"
	"adbudget/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App            AppConfig       `mapstructure:"app"`
	Logging        logging.Config  `mapstructure:"logging"`
	Shareably      ShareablyConfig `mapstructure:"shareably"`
	Analysis       AnalysisConfig  `mapstructure:"analysis"`
	Recommendation budget.Rules    `mapstructure:"recommendation"`
	Alerting       AlertingConfig  `mapstructure:"alerting"`
	Export         ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ShareablyConfig covers the insight and budget API.
type ShareablyConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	AccessToken       string        `mapstructure:"access_token"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// AnalysisConfig selects the date range and metrics of a run.
type AnalysisConfig struct {
	StartDate      string   `mapstructure:"start_date"`
	EndDate        string   `mapstructure:"end_date"`
	Metrics        []string `mapstructure:"metrics"`
	Workers        int      `mapstructure:"workers"`
	InfiniteValues string   `mapstructure:"infinite_values"`
}

// AlertingConfig defines budget change alerts.
type AlertingConfig struct {
	Enabled            bool           `mapstructure:"enabled"`
	ChangeThresholdPct float64        `mapstructure:"change_threshold_pct"`
	Telegram           TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Telegram bot parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	CSVPath string `mapstructure:"csv_path"`
	PNGPath string `mapstructure:"png_path"`
	Width   int    `mapstructure:"width"`
	Height  int    `mapstructure:"height"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ADBUDGET")
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
	v.SetDefault("app.name", "adbudget")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("shareably.base_url", "http://api.shareably.net:3030")
	v.SetDefault("shareably.request_timeout", "15s")
	v.SetDefault("shareably.user_agent", "adbudget/1.0")
	v.SetDefault("shareably.max_retries", 2)
	v.SetDefault("shareably.retry_backoff", "200ms")
	v.SetDefault("shareably.requests_per_second", 10.0)

	v.SetDefault("analysis.metrics", analytics.DefaultMetrics)
	v.SetDefault("analysis.workers", 4)
	v.SetDefault("analysis.infinite_values", analytics.ExcludeNonFinite.String())

	rules := budget.DefaultRules()
	v.SetDefault("recommendation.roas_threshold", rules.ROASThreshold)
	v.SetDefault("recommendation.scale_up_factor", rules.ScaleUpFactor)
	v.SetDefault("recommendation.profit_weight", rules.ProfitWeight)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.change_threshold_pct", 20.0)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.width", 1280)
	v.SetDefault("export.height", 720)
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
	if len(c.Analysis.Metrics) == 0 {
		return fmt.Errorf("analysis.metrics must list at least one metric")
	}
	metrics := make([]string, 0, len(c.Analysis.Metrics))
	for _, m := range c.Analysis.Metrics {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			return fmt.Errorf("analysis.metrics contains an empty name")
		}
		metrics = append(metrics, m)
	}
	c.Analysis.Metrics = metrics
	if c.Analysis.Workers <= 0 {
		return fmt.Errorf("analysis.workers must be greater than zero")
	}
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("analysis.infinite_values: %w", err)
	}
	if c.Analysis.StartDate != "" {
		if _, err := analytics.ParseDate(c.Analysis.StartDate); err != nil {
			return fmt.Errorf("analysis.start_date: %w", err)
		}
	}
	if c.Analysis.EndDate != "" {
		if _, err := analytics.ParseDate(c.Analysis.EndDate); err != nil {
			return fmt.Errorf("analysis.end_date: %w", err)
		}
	}
	if c.Shareably.MaxRetries < 0 {
		return fmt.Errorf("shareably.max_retries cannot be negative")
	}
	if err := c.Recommendation.Validate(); err != nil {
		return err
	}
	if c.Alerting.ChangeThresholdPct < 0 {
		return fmt.Errorf("alerting.change_threshold_pct cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if c.Export.Width <= 0 || c.Export.Height <= 0 {
		return fmt.Errorf("export.width and export.height must be greater than zero")
	}
	return nil
}

// Policy returns the configured treatment of infinite derived values.
func (c *Config) Policy() (analytics.Policy, error) {
	return analytics.ParsePolicy(c.Analysis.InfiniteValues)
}

// ResolveRange returns the inclusive analysis range, preferring the CLI
// overrides when set.
func (c *Config) ResolveRange(fromOverride, toOverride string) (time.Time, time.Time, error) {
	fromStr := c.Analysis.StartDate
	if fromOverride != "" {
		fromStr = fromOverride
	}
	toStr := c.Analysis.EndDate
	if toOverride != "" {
		toStr = toOverride
	}
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("analysis start and end dates must be provided")
	}

	from, err := analytics.ParseDate(fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start date: %w", err)
	}
	to, err := analytics.ParseDate(toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end date: %w", err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s", toStr, fromStr)
	}
	return from, to, nil
}
