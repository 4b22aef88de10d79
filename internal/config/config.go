/**
 * @description
 * This package handles the configuration management for the dashboard. It uses
 * the Viper library to read configuration from environment variables and an
 * optional .env file, providing a centralized way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Token store kinds.
const (
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
	TokenStoreMemory = "memory"
)

const (
	defaultTokenRedisKey  = "globpay:merchant_token"
	defaultEventExchange  = "dashboard.events"
	defaultRevalidateCron = "@every 15m"
)

// Config holds all the configuration variables for the dashboard.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	GatewayAPIURL             string `mapstructure:"GATEWAY_API_URL"`
	GatewayTimeoutSeconds     int    `mapstructure:"GATEWAY_TIMEOUT_SECONDS"`
	TokenStore                string `mapstructure:"TOKEN_STORE"`
	TokenFile                 string `mapstructure:"TOKEN_FILE"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	TokenRedisKey             string `mapstructure:"TOKEN_REDIS_KEY"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	EventExchange             string `mapstructure:"EVENT_EXCHANGE"`
	SessionRevalidateSchedule string `mapstructure:"SESSION_REVALIDATE_SCHEDULE"`
	CORSAllowedOrigins        string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel                  string `mapstructure:"LOG_LEVEL"`
	LogFormat                 string `mapstructure:"LOG_FORMAT"`
	Timezone                  string `mapstructure:"TIMEZONE"`
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8090")
	viper.SetDefault("GATEWAY_TIMEOUT_SECONDS", 0)
	viper.SetDefault("TOKEN_STORE", TokenStoreFile)
	viper.SetDefault("TOKEN_FILE", defaultTokenFile())
	viper.SetDefault("TOKEN_REDIS_KEY", defaultTokenRedisKey)
	viper.SetDefault("EVENT_EXCHANGE", defaultEventExchange)
	viper.SetDefault("SESSION_REVALIDATE_SCHEDULE", defaultRevalidateCron)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "console")
	viper.SetDefault("TIMEZONE", "UTC")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("GATEWAY_API_URL", "GATEWAY_API_URL", "VITE_API_URL")
	_ = viper.BindEnv("GATEWAY_TIMEOUT_SECONDS")
	_ = viper.BindEnv("TOKEN_STORE")
	_ = viper.BindEnv("TOKEN_FILE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("TOKEN_REDIS_KEY")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENT_EXCHANGE")
	_ = viper.BindEnv("SESSION_REVALIDATE_SCHEDULE")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("LOG_FORMAT")
	_ = viper.BindEnv("TIMEZONE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn().Err(err).Str("component", "config").Msg("failed to read config file; using environment values")
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.GatewayAPIURL = strings.TrimRight(strings.TrimSpace(config.GatewayAPIURL), "/")
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.SessionRevalidateSchedule = strings.TrimSpace(config.SessionRevalidateSchedule)

	config.TokenStore = strings.ToLower(strings.TrimSpace(config.TokenStore))
	switch config.TokenStore {
	case TokenStoreFile, TokenStoreRedis, TokenStoreMemory:
	default:
		log.Warn().Str("component", "config").Str("token_store", config.TokenStore).Msg("unknown token store; using file")
		config.TokenStore = TokenStoreFile
	}
	if config.TokenStore == TokenStoreRedis && config.RedisURL == "" {
		log.Warn().Str("component", "config").Msg("TOKEN_STORE=redis without REDIS_URL; using file")
		config.TokenStore = TokenStoreFile
	}

	if strings.TrimSpace(config.TokenFile) == "" {
		config.TokenFile = defaultTokenFile()
	}
	if strings.TrimSpace(config.TokenRedisKey) == "" {
		config.TokenRedisKey = defaultTokenRedisKey
	}
	if strings.TrimSpace(config.EventExchange) == "" {
		config.EventExchange = defaultEventExchange
	}
	if config.GatewayTimeoutSeconds < 0 {
		log.Warn().Str("component", "config").Int("timeout_seconds", config.GatewayTimeoutSeconds).Msg("negative gateway timeout configured; coercing to zero")
		config.GatewayTimeoutSeconds = 0
	}

	return
}

// GatewayTimeout is the per-request timeout of gateway calls. Zero means none.
func (c Config) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutSeconds) * time.Second
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// Location resolves TIMEZONE, falling back to UTC.
func (c Config) Location() *time.Location {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warn().Err(err).Str("component", "config").Str("timezone", name).Msg("unknown timezone; using UTC")
		return time.UTC
	}
	return loc
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".globpay", "merchant_token")
	}
	return filepath.Join(home, ".globpay", "merchant_token")
}
