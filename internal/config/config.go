// Package config loads the service's environment configuration with
// spf13/viper + subosito/gotenv, following the same
// defaults/bind/validate/unmarshal pipeline the teacher repo uses.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all configuration for the service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Shopping  ShoppingConfig  `mapstructure:"shopping"`
	AI        AIConfig        `mapstructure:"ai"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Compare   CompareConfig   `mapstructure:"compare"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Env         string `mapstructure:"env"`
	AppBaseURL  string `mapstructure:"app_base_url"`
}

// DatabaseConfig holds the relational store location (spec.md §6.4).
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ShoppingConfig holds the outbound comparable-listings provider config.
type ShoppingConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// AIConfig holds the AI normalizer adapter's provider selection.
type AIConfig struct {
	Provider   string `mapstructure:"provider"`
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	OllamaHost string `mapstructure:"ollama_host"`
}

// StripeConfig holds Stripe billing credentials.
type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	APITokenSalt string `mapstructure:"api_token_salt"`
}

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RateLimitConfig holds rate limiting configuration (spec.md §4.J).
type RateLimitConfig struct {
	UserPerMinute int `mapstructure:"user_per_minute"`
	IPPerMinute   int `mapstructure:"ip_per_minute"`
}

// CacheConfig holds compare-cache freshness windows (spec.md §3.3/§4.H).
type CacheConfig struct {
	TTLHours         int `mapstructure:"ttl_hours"`
	LooseWindowHours int `mapstructure:"loose_window_hours"`
}

// CompareConfig holds orchestrator tuning knobs.
type CompareConfig struct {
	VerdictMarginPercent   float64 `mapstructure:"verdict_margin_percent"`
	FreeFreshFetchAllowance int64  `mapstructure:"free_fresh_fetch_allowance"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig() (*Config, error) {
	_ = gotenv.Load()

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func bindEnvVars() {
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("server.env", "ENV")
	viper.BindEnv("server.app_base_url", "APP_BASE_URL")

	viper.BindEnv("database.path", "DATABASE_PATH")

	viper.BindEnv("shopping.api_key", "SHOPPING_API_KEY")
	viper.BindEnv("shopping.base_url", "SHOPPING_API_BASE_URL")

	viper.BindEnv("ai.provider", "AI_PROVIDER")
	viper.BindEnv("ai.api_key", "AI_API_KEY")
	viper.BindEnv("ai.model", "AI_MODEL")
	viper.BindEnv("ai.ollama_host", "OLLAMA_HOST")

	viper.BindEnv("stripe.secret_key", "STRIPE_SECRET_KEY")
	viper.BindEnv("stripe.webhook_secret", "STRIPE_WEBHOOK_SECRET")

	viper.BindEnv("security.api_token_salt", "API_TOKEN_SALT")

	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("logging.format", "LOG_FORMAT")

	viper.BindEnv("rate_limit.user_per_minute", "RATE_LIMIT_USER_PER_MIN")
	viper.BindEnv("rate_limit.ip_per_minute", "RATE_LIMIT_IP_PER_MIN")

	viper.BindEnv("cache.ttl_hours", "CACHE_TTL_HOURS")
	viper.BindEnv("cache.loose_window_hours", "LOOSE_CACHE_WINDOW_HOURS")

	viper.BindEnv("compare.verdict_margin_percent", "VERDICT_MARGIN_PERCENT")
	viper.BindEnv("compare.free_fresh_fetch_allowance", "FREE_FRESH_FETCH_ALLOWANCE")
}

func setDefaults() {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("APP_BASE_URL", "http://localhost:8080")

	viper.SetDefault("DATABASE_PATH", "./auctioncompare.db")

	viper.SetDefault("SHOPPING_API_BASE_URL", "http://localhost:9090")

	viper.SetDefault("AI_PROVIDER", "none")
	viper.SetDefault("AI_MODEL", "")
	viper.SetDefault("OLLAMA_HOST", "http://localhost:11434")

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")

	viper.SetDefault("RATE_LIMIT_USER_PER_MIN", 30)
	viper.SetDefault("RATE_LIMIT_IP_PER_MIN", 10)

	viper.SetDefault("CACHE_TTL_HOURS", 24)
	viper.SetDefault("LOOSE_CACHE_WINDOW_HOURS", 6)

	viper.SetDefault("VERDICT_MARGIN_PERCENT", 0.10)
	viper.SetDefault("FREE_FRESH_FETCH_ALLOWANCE", 1)
}

// validateConfig checks the fields the service cannot run without. Stripe
// and AI credentials are intentionally absent here: both subsystems
// degrade gracefully (AI_PROVIDER=none, billing routes return empty
// catalogs) rather than refusing to boot.
func validateConfig(config *Config) error {
	if config.Security.APITokenSalt == "" {
		return fmt.Errorf("API_TOKEN_SALT is required")
	}
	return nil
}

// GetPort returns the server port as a string.
func (c *Config) GetPort() string {
	return strconv.Itoa(c.Server.Port)
}

// IsProduction returns true if the environment is production.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// CacheTTL returns the compare-cache entry lifetime as a Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// LooseCacheWindow returns the loose-lookup freshness window as a Duration.
func (c *Config) LooseCacheWindow() time.Duration {
	return time.Duration(c.Cache.LooseWindowHours) * time.Hour
}
