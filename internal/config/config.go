package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without /usr/share/zoneinfo

	"github.com/KimpiegamesYT1/vissstick/internal/models"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Status     StatusConfig     `mapstructure:"status"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Prediction PredictionConfig `mapstructure:"prediction"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// StatusConfig holds the status source configuration
type StatusConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MonitorConfig holds monitoring behavior configuration
type MonitorConfig struct {
	// Timezone names the IANA zone used for date keys, times and the night window.
	Timezone string `mapstructure:"timezone"`
}

// PredictionConfig holds the initial prediction parameters. They seed the
// settings store on first start; afterwards the stored record wins.
type PredictionConfig struct {
	PollIntervalOpen   time.Duration `mapstructure:"poll_interval_open"`
	PollIntervalClosed time.Duration `mapstructure:"poll_interval_closed"`
	PollIntervalNight  time.Duration `mapstructure:"poll_interval_night"`
	NightStartHour     int           `mapstructure:"night_start_hour"`
	NightEndHour       int           `mapstructure:"night_end_hour"`
	HistoryLimitDays   int           `mapstructure:"history_limit_days"`
	MinSessionDuration time.Duration `mapstructure:"min_session_duration"`
	LookbackMonths     int           `mapstructure:"lookback_months"`
	Weights            WeightsConfig `mapstructure:"weights"`
}

// WeightsConfig holds the month-offset decay weights
type WeightsConfig struct {
	Current   float64 `mapstructure:"current"`
	OneMonth  float64 `mapstructure:"one_month"`
	TwoMonths float64 `mapstructure:"two_months"`
	Older     float64 `mapstructure:"older"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// MQTTConfig holds MQTT state publishing configuration
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
}

// HTTPConfig holds analytics API configuration
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. VISSSTICK_TELEGRAM_BOT_TOKEN
	v.SetEnvPrefix("VISSSTICK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Status source defaults
	v.SetDefault("status.url", "")
	v.SetDefault("status.timeout", "10s")

	// Monitor defaults
	v.SetDefault("monitor.timezone", "Europe/Amsterdam")

	// Prediction defaults
	d := models.DefaultParameters()
	v.SetDefault("prediction.poll_interval_open", d.OpenInterval().String())
	v.SetDefault("prediction.poll_interval_closed", d.ClosedInterval().String())
	v.SetDefault("prediction.poll_interval_night", d.NightInterval().String())
	v.SetDefault("prediction.night_start_hour", d.NightStartHour)
	v.SetDefault("prediction.night_end_hour", d.NightEndHour)
	v.SetDefault("prediction.history_limit_days", d.HistoryLimitDays)
	v.SetDefault("prediction.min_session_duration", (time.Duration(d.MinSessionDurationMinutes) * time.Minute).String())
	v.SetDefault("prediction.lookback_months", d.LookbackMonths)
	v.SetDefault("prediction.weights.current", d.WeightByMonthOffset.Current)
	v.SetDefault("prediction.weights.one_month", d.WeightByMonthOffset.OneMonth)
	v.SetDefault("prediction.weights.two_months", d.WeightByMonthOffset.TwoMonths)
	v.SetDefault("prediction.weights.older", d.WeightByMonthOffset.Older)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "vissstick/room/state")
	v.SetDefault("mqtt.client_id", "vissstick")

	// HTTP defaults
	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":8080")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/vissstick.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Status config
	if c.Status.URL == "" {
		return fmt.Errorf("status.url is required")
	}
	if c.Status.Timeout <= 0 {
		return fmt.Errorf("status.timeout must be positive")
	}

	// Validate Monitor config
	if _, err := c.Monitor.Location(); err != nil {
		return fmt.Errorf("monitor.timezone is invalid: %w", err)
	}

	// Validate Prediction config
	if c.Prediction.MinSessionDuration%time.Minute != 0 {
		return fmt.Errorf("prediction.min_session_duration must be a whole number of minutes")
	}
	params := c.Prediction.Parameters()
	if err := params.Validate(); err != nil {
		return fmt.Errorf("prediction: %w", err)
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate MQTT config
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic is required when mqtt is enabled")
		}
	}

	// Validate HTTP config
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required when http is enabled")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Location resolves the configured time zone
func (m MonitorConfig) Location() (*time.Location, error) {
	if m.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(m.Timezone)
}

// Parameters converts the configured defaults into prediction parameters
func (p PredictionConfig) Parameters() models.PredictionParameters {
	return models.PredictionParameters{
		PollIntervalOpenMs:        p.PollIntervalOpen.Milliseconds(),
		PollIntervalClosedMs:      p.PollIntervalClosed.Milliseconds(),
		PollIntervalNightMs:       p.PollIntervalNight.Milliseconds(),
		NightStartHour:            p.NightStartHour,
		NightEndHour:              p.NightEndHour,
		HistoryLimitDays:          p.HistoryLimitDays,
		MinSessionDurationMinutes: int(p.MinSessionDuration / time.Minute),
		LookbackMonths:            p.LookbackMonths,
		WeightByMonthOffset: models.MonthWeights{
			Current:   p.Weights.Current,
			OneMonth:  p.Weights.OneMonth,
			TwoMonths: p.Weights.TwoMonths,
			Older:     p.Weights.Older,
		},
	}
}
