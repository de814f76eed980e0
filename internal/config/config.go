// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Telegram struct {
		Token         string  `mapstructure:"token"`
		Mode          string  `mapstructure:"mode"`
		WebhookURL    string  `mapstructure:"webhook_url"`
		WebhookSecret string  `mapstructure:"webhook_secret"`
		BotUsername   string  `mapstructure:"bot_username"`
		AdminIDs      []int64 `mapstructure:"admin_ids"`
	} `mapstructure:"telegram"`
	DB struct {
		Host          string        `mapstructure:"host"`
		Port          string        `mapstructure:"port"`
		User          string        `mapstructure:"user"`
		Password      string        `mapstructure:"password"`
		Name          string        `mapstructure:"name"`
		SSLMode       string        `mapstructure:"ssl_mode"`
		MaxOpenConns  int           `mapstructure:"max_open_conns"`
		MaxIdleConns  int           `mapstructure:"max_idle_conns"`
		ConnLifetime  time.Duration `mapstructure:"conn_lifetime"`
		RunMigrations bool          `mapstructure:"run_migrations"`
	} `mapstructure:"db"`
	Redis struct {
		Addr       string        `mapstructure:"addr"`
		Password   string        `mapstructure:"password"`
		DB         int           `mapstructure:"db"`
		SessionTTL time.Duration `mapstructure:"session_ttl"`
	} `mapstructure:"redis"`
	Stripe struct {
		SecretKey  string `mapstructure:"secret_key"`
		PublicKey  string `mapstructure:"public_key"`
		WebhookKey string `mapstructure:"webhook_key"`
		ProductID  string `mapstructure:"product_id"`
		PriceID    string `mapstructure:"price_id"`
	} `mapstructure:"stripe"`
	GPT struct {
		APIKey      string  `mapstructure:"api_key"`
		Model       string  `mapstructure:"model"`
		VisionModel string  `mapstructure:"vision_model"`
		MaxTokens   int     `mapstructure:"max_tokens"`
		Temperature float32 `mapstructure:"temperature"`
	} `mapstructure:"gpt"`
	Gemini struct {
		APIKey string `mapstructure:"api_key"`
		Model  string `mapstructure:"model"`
	} `mapstructure:"gemini"`
	Subscription struct {
		Amount               int64         `mapstructure:"amount"`
		Currency             string        `mapstructure:"currency"`
		Description          string        `mapstructure:"description"`
		RenewalPeriod        time.Duration `mapstructure:"renewal_period"`
		TrialDays            int           `mapstructure:"trial_days"`
		RenewalDaysAhead     int           `mapstructure:"renewal_days_ahead"`
		ChargeRetryInterval  time.Duration `mapstructure:"charge_retry_interval"`
		InactivityThreshold  time.Duration `mapstructure:"inactivity_threshold"`
		ReminderSchedule     string        `mapstructure:"reminder_schedule"`
		DeactivationSchedule string        `mapstructure:"deactivation_schedule"`
		AutoChargeSchedule   string        `mapstructure:"auto_charge_schedule"`
	} `mapstructure:"subscription"`
	Broadcast struct {
		RatePerSecond float64 `mapstructure:"rate_per_second"`
		ProgressEvery int     `mapstructure:"progress_every"`
	} `mapstructure:"broadcast"`
	Workout struct {
		MinExercises   int `mapstructure:"min_exercises"`
		MaxExercises   int `mapstructure:"max_exercises"`
		RecentWorkouts int `mapstructure:"recent_workouts"`
		RegenHistory   int `mapstructure:"regen_history"`
		HistoryLimit   int `mapstructure:"history_limit"`
	} `mapstructure:"workout"`
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

var defaults = map[string]interface{}{
	"telegram.token":          "",
	"telegram.mode":           "polling",
	"telegram.webhook_url":    "",
	"telegram.webhook_secret": "",
	"telegram.bot_username":   "",
	"telegram.admin_ids":      []int64{},

	"db.host":           "localhost",
	"db.port":           "5432",
	"db.user":           "postgres",
	"db.password":       "postgres",
	"db.name":           "fitness_bot",
	"db.ssl_mode":       "disable",
	"db.max_open_conns": 20,
	"db.max_idle_conns": 10,
	"db.conn_lifetime":  5 * time.Minute,
	"db.run_migrations": true,

	"redis.addr":        "",
	"redis.password":    "",
	"redis.db":          0,
	"redis.session_ttl": 24 * time.Hour,

	"stripe.secret_key":  "",
	"stripe.public_key":  "",
	"stripe.webhook_key": "",
	"stripe.product_id":  "",
	"stripe.price_id":    "",

	"gpt.api_key":      "",
	"gpt.model":        "gpt-4o-mini",
	"gpt.vision_model": "gpt-4o",
	"gpt.max_tokens":   1200,
	"gpt.temperature":  0.7,

	"gemini.api_key": "",
	"gemini.model":   "gemini-1.5-flash",

	"subscription.amount":                80000,
	"subscription.currency":              "rub",
	"subscription.description":           "Подписка на фитнес-бота",
	"subscription.renewal_period":        30 * 24 * time.Hour,
	"subscription.trial_days":            0,
	"subscription.renewal_days_ahead":    3,
	"subscription.charge_retry_interval": 24 * time.Hour,
	"subscription.inactivity_threshold":  72 * time.Hour,
	"subscription.reminder_schedule":     "@daily",
	"subscription.deactivation_schedule": "@daily",
	"subscription.auto_charge_schedule":  "@every 1m",

	"broadcast.rate_per_second": 30.0,
	"broadcast.progress_every":  100,

	"workout.min_exercises":   5,
	"workout.max_exercises":   8,
	"workout.recent_workouts": 3,
	"workout.regen_history":   3,
	"workout.history_limit":   100,

	"server.port": "8080",

	"log.level":       "info",
	"log.development": false,

	"shutdown_timeout": 10 * time.Second,
}

// Load loads the configuration from an optional config file, the environment and defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("$HOME/.fitness-bot")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// TELEGRAM_TOKEN overrides telegram.token, SUBSCRIPTION_AMOUNT overrides subscription.amount, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Process any ${ENV_VAR} syntax in the config values
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
			if envValue := os.Getenv(envVar); envValue != "" {
				v.Set(key, envValue)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate reports the first missing critical setting.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram token is not configured")
	}
	if c.Telegram.Mode != "polling" && c.Telegram.Mode != "webhook" {
		return fmt.Errorf("unknown telegram mode %q", c.Telegram.Mode)
	}
	if c.Telegram.Mode == "webhook" && (c.Telegram.WebhookURL == "" || c.Telegram.WebhookSecret == "") {
		return errors.New("telegram webhook mode requires webhook_url and webhook_secret")
	}
	if c.Stripe.SecretKey == "" || c.Stripe.WebhookKey == "" {
		return errors.New("stripe configuration is incomplete")
	}
	if c.GPT.APIKey == "" {
		return errors.New("GPT API key is not configured")
	}
	if c.Workout.MinExercises <= 0 || c.Workout.MaxExercises < c.Workout.MinExercises {
		return fmt.Errorf("invalid exercise range [%d, %d]", c.Workout.MinExercises, c.Workout.MaxExercises)
	}
	if c.Subscription.Amount <= 0 {
		return errors.New("subscription amount must be positive")
	}
	return nil
}

// DatabaseURL returns the connection URL used by the migrator.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     c.DB.Host + ":" + c.DB.Port,
		Path:     "/" + c.DB.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.DB.SSLMode),
	}
	return u.String()
}

// IsAdmin reports whether the telegram id is listed as a bootstrap admin.
func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}
