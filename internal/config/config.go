// Package config loads the connector configuration from the environment,
// an optional .env file and an optional config.yaml.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvProd = "production"
	EnvDev  = "development"
	EnvTest = "test"
)

// Config holds application configuration loaded from environment variables or config file.
type Config struct {
	AppEnv      string `mapstructure:"app_env" default:"development" validate:"required,oneof=development production test"`
	Port        string `mapstructure:"port" default:"3000" validate:"required"`
	PublicURL   string `mapstructure:"public_url" default:"http://localhost:3000" validate:"required,url"`
	FrontendURL string `mapstructure:"frontend_url" default:"http://localhost:3000" validate:"required,url"`

	// Storage
	DatabaseURL   string        `secret:"true" mapstructure:"database_url" default:"gtm.db" validate:"required"`
	StateStore    string        `mapstructure:"state_store" default:"memory" validate:"oneof=memory redis"`
	RedisAddr     string        `mapstructure:"redis_addr" default:"localhost:6379"`
	RedisPassword string        `secret:"true" mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" default:"0"`
	StateTTL      time.Duration `mapstructure:"state_ttl" default:"10m" validate:"gt=0"`

	// Token lifecycle
	TokenSkew   time.Duration `mapstructure:"token_skew" default:"5m" validate:"gte=0"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout" default:"30s" validate:"gt=0"`

	// Publishing
	PublishPollInterval time.Duration `mapstructure:"publish_poll_interval" default:"2s" validate:"gt=0"`
	PublishPollTimeout  time.Duration `mapstructure:"publish_poll_timeout" default:"60s" validate:"gtfield=PublishPollInterval"`

	// Local account sessions
	SessionSecret string `secret:"true" mapstructure:"session_secret" validate:"required,min=32"`
	SessionIssuer string `mapstructure:"session_issuer" default:"traktoon"`

	// X / Twitter
	TwitterClientID       string `mapstructure:"twitter_client_id"`
	TwitterClientSecret   string `secret:"true" mapstructure:"twitter_client_secret"`
	TwitterConsumerKey    string `mapstructure:"twitter_consumer_key"`
	TwitterConsumerSecret string `secret:"true" mapstructure:"twitter_consumer_secret"`

	// Instagram via the Facebook Graph API
	FacebookAppID        string `mapstructure:"facebook_app_id"`
	FacebookAppSecret    string `secret:"true" mapstructure:"facebook_app_secret"`
	FacebookGraphVersion string `mapstructure:"facebook_graph_version" default:"v19.0"`

	// Reddit
	RedditClientID     string `mapstructure:"reddit_client_id"`
	RedditClientSecret string `secret:"true" mapstructure:"reddit_client_secret"`
	RedditUserAgent    string `mapstructure:"reddit_user_agent" default:"web:traktoon:v1.0"`

	// Logging
	LogLevel string `mapstructure:"log_level" default:"INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
}

// Load loads configuration from .env, config file and environment variables using viper.
func Load() *Config {
	cfg := Config{}

	// A missing .env file is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("Could not load .env file", "error", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__", "-", "__"))

	if err := defaults.Set(&cfg); err != nil {
		panic("failed to set struct defaults: " + err.Error())
	}

	// Bind env vars for each field
	typeOfCfg := reflect.TypeOf(cfg)
	for i := 0; i < typeOfCfg.NumField(); i++ {
		field := typeOfCfg.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" {
			key = toSnakeCase(field.Name)
		}
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logger.Error("Error read config file", "error", err)
		}
		logger.Warn("No config file found, using environment variables")
	}

	if err := v.Unmarshal(&cfg); err != nil {
		logger.Warn("Could not unmarshal config", "error", err)
	}

	logger.Info("Loaded config", "config", cfg.String())

	return &cfg
}

func Validate(cfg *Config) error {
	validate := validator.New()
	return validate.Struct(cfg)
}

// IsDev reports whether the app runs in development mode.
func (c *Config) IsDev() bool {
	return c.AppEnv == EnvDev
}

// TwitterOAuth2Enabled reports whether the X OAuth2 client is configured.
func (c *Config) TwitterOAuth2Enabled() bool {
	return c.TwitterClientID != "" && c.TwitterClientSecret != ""
}

// TwitterOAuth1Enabled reports whether the X OAuth1 consumer is configured.
func (c *Config) TwitterOAuth1Enabled() bool {
	return c.TwitterConsumerKey != "" && c.TwitterConsumerSecret != ""
}

// InstagramEnabled reports whether the Facebook app is configured.
func (c *Config) InstagramEnabled() bool {
	return c.FacebookAppID != "" && c.FacebookAppSecret != ""
}

// RedditEnabled reports whether the Reddit app is configured.
func (c *Config) RedditEnabled() bool {
	return c.RedditClientID != "" && c.RedditClientSecret != ""
}

// String returns a string representation of the config with secret fields redacted.
func (c *Config) String() string {
	v := reflect.ValueOf(*c)
	t := reflect.TypeOf(*c)
	var sb strings.Builder
	sb.WriteString("Config{")
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Name
		value := v.Field(i).Interface()
		if field.Tag.Get("secret") == "true" {
			value = "***REDACTED***"
		}
		sb.WriteString(name + ": " + toString(value))
		if i < t.NumField()-1 {
			sb.WriteString(", ")
		}
	}
	sb.WriteString("}")
	return sb.String()
}

// toString converts interface{} to string for String
func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// toSnakeCase converts CamelCase to snake_case
func toSnakeCase(str string) string {
	runes := []rune(str)
	var out []rune
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if !unicode.IsUpper(prev) || nextLower {
				out = append(out, '_')
			}
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}
