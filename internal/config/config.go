// Package config loads the API configuration from the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string   `env:"PORT" envDefault:"5000"`
	JWTSecret   string   `env:"JWT_SECRET"`
	ServerURL   string   `env:"SERVER_URL"`
	ClientURL   string   `env:"CLIENT_URL"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	BcryptCost  int      `env:"BCRYPT_COST" envDefault:"10"`
	MaxFileMB   int64    `env:"MAX_FILE_SIZE_MB" envDefault:"8"`

	Log      Log      `envPrefix:"LOG_"`
	Database Database
	Mail     Mail
	Storage  Storage `envPrefix:"STORAGE_"`
}

type Log struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// Database selects the store driver. "memory" keeps everything in process.
type Database struct {
	Driver string `env:"DB_DRIVER" envDefault:"postgres"`
	DSN    string `env:"DATABASE_URL" envDefault:"host=localhost user=postgres password=postgres dbname=researchblog port=5432 sslmode=disable"`
}

type Mail struct {
	Provider       string `env:"MAIL_PROVIDER" envDefault:"smtp"`
	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser       string `env:"SMTP_USER"`
	SMTPPass       string `env:"SMTP_PASS"`
	From           string `env:"MAIL_FROM"`
	FromName       string `env:"MAIL_FROM_NAME" envDefault:"Research Blog"`
	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
}

type Storage struct {
	Provider  string `env:"PROVIDER" envDefault:"minio"`
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"research-blog"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
	PublicURL string `env:"PUBLIC_URL"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the process environment only.
func Parse() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ServerURL = strings.TrimSuffix(cfg.ServerURL, "/")
	cfg.ClientURL = strings.TrimSuffix(cfg.ClientURL, "/")
	if cfg.ClientURL == "" {
		cfg.ClientURL = cfg.ServerURL
	}
	if cfg.Storage.PublicURL == "" {
		scheme := "http"
		if cfg.Storage.UseSSL {
			scheme = "https"
		}
		cfg.Storage.PublicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Storage.Endpoint, cfg.Storage.Bucket)
	}
	cfg.Storage.PublicURL = strings.TrimSuffix(cfg.Storage.PublicURL, "/")
	return &cfg, nil
}

// MaxFileBytes is the per-file upload limit.
func (c *Config) MaxFileBytes() int64 {
	return c.MaxFileMB << 20
}
