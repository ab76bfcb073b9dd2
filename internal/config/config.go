// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port            string `mapstructure:"PORT"`
	Env             string `mapstructure:"APP_ENV"`
	AllowedOrigins  string `mapstructure:"ALLOWED_ORIGINS"`
	AdminName       string `mapstructure:"ADMIN_NAME"`
	AdminPassword   string `mapstructure:"ADMIN_PASSWORD"`
	HistoryCapacity int    `mapstructure:"HISTORY_CAPACITY"`
	RedisURL        string `mapstructure:"REDIS_URL"`
	FeatureFlags    string `mapstructure:"FEATURE_FLAGS"`
	UploadDir       string `mapstructure:"UPLOAD_DIR"`
	MaxUploadSize   int64  `mapstructure:"MAX_UPLOAD_SIZE"`
	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string `mapstructure:"OTLP_ENDPOINT"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// Initial read to get APP_ENV if set in base config
	// We intentionally ignore this error as the config file may not exist yet
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("ADMIN_NAME", "크로바츠입니다")
	viper.SetDefault("ADMIN_PASSWORD", "change-me-in-production")
	viper.SetDefault("HISTORY_CAPACITY", 500)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("FEATURE_FLAGS", "uploads=on")
	viper.SetDefault("UPLOAD_DIR", "./uploads")
	viper.SetDefault("MAX_UPLOAD_SIZE", 10<<20)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.AdminName == "" {
		return errors.New("ADMIN_NAME is required")
	}
	if c.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD is required")
	}
	if c.HistoryCapacity <= 0 {
		return errors.New("HISTORY_CAPACITY must be positive")
	}
	if c.MaxUploadSize <= 0 {
		return errors.New("MAX_UPLOAD_SIZE must be positive")
	}

	isProduction := c.Env == "production" || c.Env == "prod"

	// Strict checks for production
	if isProduction {
		if c.AdminPassword == "change-me-in-production" {
			return errors.New("ADMIN_PASSWORD must be changed from the default value in production")
		}
		if len(c.AdminPassword) < 16 {
			return errors.New("ADMIN_PASSWORD must be at least 16 characters in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else {
		if len(c.AdminPassword) < 16 {
			log.Println("WARNING: ADMIN_PASSWORD is shorter than 16 characters. Consider using a stronger secret for production.")
		}
	}

	return nil
}
