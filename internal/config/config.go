package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Estimate  EstimateConfig
}

type AppConfig struct {
	Port string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host string
	Port string
}

type AuthConfig struct {
	APIKeys map[string]string // API key -> scope/description
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// EstimateConfig дефолтные допущения для оценки выручки и соль для
// фингерпринта кликов
type EstimateConfig struct {
	ConversionRate float64
	OrderValue     float64
	ClickSalt      string
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")

	// Auth config - parse API keys from comma-separated string
	// Format: key1:scope1,key2:scope2
	apiKeysRaw := viper.GetString("API_KEYS")
	cfg.Auth.APIKeys = parseAPIKeys(apiKeysRaw)

	// Rate limit config
	cfg.RateLimit.RequestsPerSecond = viper.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	cfg.RateLimit.BurstSize = viper.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 20
	}

	// Допущения по умолчанию (используются, когда оператор не задал свои)
	cfg.Estimate.ConversionRate = viper.GetFloat64("DEFAULT_CONVERSION_RATE")
	if cfg.Estimate.ConversionRate <= 0 {
		cfg.Estimate.ConversionRate = 0.008
	}
	cfg.Estimate.OrderValue = viper.GetFloat64("DEFAULT_ORDER_VALUE")
	if cfg.Estimate.OrderValue <= 0 {
		cfg.Estimate.OrderValue = 45
	}
	cfg.Estimate.ClickSalt = viper.GetString("CLICK_SALT")

	return &cfg, nil
}

// parseAPIKeys parses comma-separated API keys in format "key1:scope1,key2:scope2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}
