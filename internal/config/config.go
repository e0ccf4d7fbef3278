package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the YAML config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tribes/config.yaml",
}

type Config struct {
	DatabaseURL string `koanf:"database_url"`
	JWTSecret   string `koanf:"jwt_secret"`
	Port        string `koanf:"port"`

	LogLevel      string `koanf:"log_level"`
	LogPath       string `koanf:"log_path"`
	LogMaxSizeMB  int    `koanf:"log_max_size_mb"`
	LogMaxBackups int    `koanf:"log_max_backups"`
	LogMaxAgeDays int    `koanf:"log_max_age_days"`
	LogCompress   bool   `koanf:"log_compress"`

	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`

	RateLimitPerMinute int    `koanf:"rate_limit_per_minute"`
	AllowedOrigins     string `koanf:"allowed_origins"`
	FCMServiceAccount  string `koanf:"fcm_service_account"`
	UploadDir          string `koanf:"upload_dir"`

	ProgressStep         int `koanf:"progress_step"`
	ActiveUserWindowDays int `koanf:"active_user_window_days"`
}

func defaultConfig() *Config {
	return &Config{
		DatabaseURL:          "tribes.db",
		JWTSecret:            "your-secret-key-change-in-production",
		Port:                 "8080",
		LogLevel:             "info",
		LogMaxSizeMB:         100,
		LogMaxBackups:        3,
		LogMaxAgeDays:        7,
		CacheTTL:             5 * time.Minute,
		RateLimitPerMinute:   60,
		AllowedOrigins:       "*",
		UploadDir:            "uploads",
		ProgressStep:         10,
		ActiveUserWindowDays: 30,
	}
}

// Load builds the configuration from defaults, an optional YAML file, a .env
// file and finally the process environment. Later layers win.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// .env never overrides variables already present in the environment
	_ = godotenv.Load()

	known := func(key string) string {
		key = strings.ToLower(key)
		if !k.Exists(key) {
			return ""
		}
		return key
	}
	if err := k.Load(env.Provider("", ".", known), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: jwt_secret must be set")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("config: port %q is not numeric", c.Port)
	}
	if c.ProgressStep <= 0 || c.ProgressStep > 100 {
		return fmt.Errorf("config: progress_step must be in 1..100, got %d", c.ProgressStep)
	}
	if c.ActiveUserWindowDays <= 0 {
		return fmt.Errorf("config: active_user_window_days must be positive, got %d", c.ActiveUserWindowDays)
	}
	return nil
}

// UsePostgres reports whether DatabaseURL points at a postgres server rather
// than a sqlite file.
func (c *Config) UsePostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres")
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
