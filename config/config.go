package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Progress ProgressConfig `mapstructure:"progress"`
	Badges   BadgesConfig   `mapstructure:"badges"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite3", "postgres" or "memory"
	URL    string `mapstructure:"url"`
}

type AuthConfig struct {
	SessionSecret string `mapstructure:"session_secret"`
	SessionName   string `mapstructure:"session_name"`
}

type ProgressConfig struct {
	CompletionThreshold int `mapstructure:"completion_threshold"`
	SyncWorkers         int `mapstructure:"sync_workers"`
}

type BadgesConfig struct {
	CatalogFile     string        `mapstructure:"catalog_file"` // empty uses the built-in catalog
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Mode  string `mapstructure:"mode"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.url", "./ascended.db")

	v.SetDefault("auth.session_secret", "change-me-in-production")
	v.SetDefault("auth.session_name", "ascended-session")

	v.SetDefault("progress.completion_threshold", 95)
	v.SetDefault("progress.sync_workers", 5)

	v.SetDefault("badges.catalog_file", "")
	v.SetDefault("badges.refresh_interval", 10*time.Minute)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.channel", "ascended.badges")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.mode", "dev")
}

// Load reads config.yaml (and an optional config.local.yaml override) from
// the working directory or ./config, then applies ASCENDED_ environment
// variables. A .env file is loaded into the environment first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New(), ".", "./config")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	// Allow environment variables
	v.SetEnvPrefix("ASCENDED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// Config file not found, use defaults
	}

	v.SetConfigName("config.local")
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config.Progress.SyncWorkers < 1 {
		config.Progress.SyncWorkers = 1
	}
	if config.Progress.CompletionThreshold <= 0 || config.Progress.CompletionThreshold > 100 {
		return nil, errors.New("progress.completion_threshold must be within 1..100")
	}

	return &config, nil
}
