package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrMissingToken is returned when the Telegram token is not configured.
var ErrMissingToken = errors.New("TELEGRAM_BOT_TOKEN is not set")

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env           string        `mapstructure:"env"` // current application environment (local, production)
	TelegramToken string        `mapstructure:"-"`   // Telegram API token loaded from environment
	DB            DB            `mapstructure:"database"`
	SRS           SRS           `mapstructure:"srs"`
	Gates         Gates         `mapstructure:"gates"`
	Rounds        Rounds        `mapstructure:"rounds"`
	Session       Session       `mapstructure:"session"`
	Notifications Notifications `mapstructure:"notifications"`
}

// DB contains database-related configuration parameters.
type DB struct {
	Driver string `mapstructure:"driver"` // "sqlite3" or "postgres"
	Path   string `mapstructure:"path"`   // sqlite file path
	DSN    string `mapstructure:"-"`      // postgres connection string loaded from environment
}

// SRS contains the tunables of the spaced-repetition scheduler.
type SRS struct {
	InitialEasiness float64 `mapstructure:"initial_easiness"` // EF assigned to new records
	EasinessFloor   float64 `mapstructure:"easiness_floor"`   // EF never drops below this
	MaxIntervalDays int     `mapstructure:"max_interval_days"`
	FuzzyShrink     float64 `mapstructure:"fuzzy_shrink"`    // interval multiplier for a "fuzzy" recall, < 1
	EarlyIntervals  []int   `mapstructure:"early_intervals"` // fixed day-counts for the first repetitions
}

// Gates contains the module unlock thresholds.
type Gates struct {
	WordUnlockThreshold     float64 `mapstructure:"word_unlock_threshold"`     // letter progress needed to open words
	SentenceUnlockThreshold float64 `mapstructure:"sentence_unlock_threshold"` // word progress needed to open sentences
	ArticleUnlockThreshold  float64 `mapstructure:"article_unlock_threshold"`  // sentence progress needed to open articles
}

// Rounds configures the lesson-level mastery checks.
type Rounds struct {
	PassThreshold float64 `mapstructure:"pass_threshold"` // accuracy required to pass a round
	MaxRounds     int     `mapstructure:"max_rounds"`
}

// Session configures daily session construction.
type Session struct {
	ReviewLimit int `mapstructure:"review_limit"` // max due items pulled into one session
	DailyNewCap int `mapstructure:"daily_new_cap"`
}

// Notifications bounds the hours during which reminders may be sent.
type Notifications struct {
	StartHour int `mapstructure:"start_hour"`
	EndHour   int `mapstructure:"end_hour"`
}

// Load reads configuration from config files and environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("env", "APP_ENV")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	cfg.TelegramToken = v.GetString("telegram_bot_token")
	if cfg.TelegramToken == "" {
		return nil, ErrMissingToken
	}

	// A DATABASE_URL switches the store to postgres; otherwise local sqlite.
	cfg.DB.DSN = v.GetString("database_url")
	if cfg.DB.DSN != "" {
		cfg.DB.Driver = "postgres"
	}

	return &cfg, nil
}

// Default returns the built-in configuration without consulting files or the
// environment. Used by tests and by components that only need the tunables.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "data/lingobot.db")

	v.SetDefault("srs.initial_easiness", 2.5)
	v.SetDefault("srs.easiness_floor", 1.3)
	v.SetDefault("srs.max_interval_days", 180)
	v.SetDefault("srs.fuzzy_shrink", 0.5)
	v.SetDefault("srs.early_intervals", []int{1, 2, 4, 7, 14})

	v.SetDefault("gates.word_unlock_threshold", 0.8)
	v.SetDefault("gates.sentence_unlock_threshold", 0.8)
	v.SetDefault("gates.article_unlock_threshold", 0.8)

	v.SetDefault("rounds.pass_threshold", 0.9)
	v.SetDefault("rounds.max_rounds", 3)

	v.SetDefault("session.review_limit", 20)
	v.SetDefault("session.daily_new_cap", 10)

	v.SetDefault("notifications.start_hour", 8)
	v.SetDefault("notifications.end_hour", 22)
}
