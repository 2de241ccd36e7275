package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	App struct {
		Env string
	}
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret       string
		TokenTTLMinutes int
		BcryptCost      int
	}
	Export struct {
		Dir string
	}
	Storage struct {
		Bucket   string
		Region   string
		Endpoint string
	}
	AWS struct {
		Profile string
	}
}

// Load reads configuration from environment variables, an optional .env and an optional
// config file found in dir.
func Load(dir string) (Config, error) {
	if dir == "" {
		dir = "."
	}
	// .env never overrides variables already set in the environment
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	v := viper.New()
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "development")
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("database.path", "data/bank_users.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 60)
	v.SetDefault("auth.bcryptcost", 10)
	v.SetDefault("export.dir", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")

	v.SetConfigName("config")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Auth.TokenTTLMinutes <= 0 {
		return Config{}, fmt.Errorf("auth token ttl must be positive, got %d", cfg.Auth.TokenTTLMinutes)
	}
	if strings.TrimSpace(cfg.Database.Path) == "" {
		return Config{}, fmt.Errorf("database path is required")
	}

	return cfg, nil
}

// IsDevelopment reports whether the app runs with development logging.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.App.Env, "development")
}
