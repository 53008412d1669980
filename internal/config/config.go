package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	GeminiAPIKey      string
	GeminiModel       string
	GenerationTimeout time.Duration
	UploadDir         string
	ResultsDir        string
	MaxUploadBytes    int64
	SessionSecret     string
	FrontendURL       string
	DatabaseURL       string
	DiscordWebhookURL string
	R2                R2Config
}

// R2Config is complete only when every field is set; otherwise mirroring is off.
type R2Config struct {
	AccountID       string
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
}

func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.BucketName != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.PublicURL != ""
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
		log.Println("WARN: .env file not found. Relying on system environment variables.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the environment only.
func FromEnv() (Config, error) {
	cfg := Config{}

	cfg.Port = envOrDefault("PORT", "8080")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = envOrDefault("GEMINI_MODEL", "gemini-1.5-pro")
	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	cfg.FrontendURL = strings.TrimSuffix(envOrDefault("FRONTEND_URL", "http://localhost:5173"), "/")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.DiscordWebhookURL = os.Getenv("DISCORD_WEBHOOK_URL")

	timeoutSeconds, err := parseIntEnv("GENERATION_TIMEOUT_SECONDS", 120)
	if err != nil {
		return Config{}, fmt.Errorf("parse GENERATION_TIMEOUT_SECONDS: %w", err)
	}
	cfg.GenerationTimeout = time.Duration(timeoutSeconds) * time.Second

	maxUploadMB, err := parseIntEnv("MAX_UPLOAD_MB", 32)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_UPLOAD_MB: %w", err)
	}
	cfg.MaxUploadBytes = maxUploadMB * 1024 * 1024

	cfg.UploadDir, err = filepath.Abs(envOrDefault("UPLOAD_DIR", "uploads"))
	if err != nil {
		return Config{}, fmt.Errorf("resolve upload dir: %w", err)
	}
	cfg.ResultsDir, err = filepath.Abs(envOrDefault("RESULTS_DIR", "results"))
	if err != nil {
		return Config{}, fmt.Errorf("resolve results dir: %w", err)
	}

	cfg.R2 = R2Config{
		AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		BucketName:      os.Getenv("R2_BUCKET_NAME"),
		AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		PublicURL:       os.Getenv("R2_PUBLIC_URL"),
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int64) (int64, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}

	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	if num < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return num, nil
}
