package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Email    EmailConfig
	Security SecurityConfig
	Store    StoreConfig
	Log      LogConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name    string
	Version string
	Env     string
	Debug   bool
	Port    string
	Host    string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// AuthConfig holds admin authentication configuration
type AuthConfig struct {
	SecretKey          string
	AdminToken         string
	AdminTokenHash     string
	TokenExpiryMinutes int
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// EmailConfig holds outbound email configuration
type EmailConfig struct {
	Enabled          bool
	SMTPHost         string
	SMTPPort         int
	Username         string
	Password         string
	SenderName       string
	SenderEmail      string
	ReplyTo          string
	RecipientEmail   string
	UnsubscribeEmail string
	Timeout          time.Duration
}

// SecurityConfig holds anti-abuse configuration
type SecurityConfig struct {
	TrustedIPs []string
	TrustProxy bool
}

// StoreConfig selects the backend for reputation and rate limit state
type StoreConfig struct {
	Backend  string // "memory" or "redis"
	RedisURL string
	Prefix   string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "Contact API"),
			Version: getEnv("APP_VERSION", "1.0.0"),
			Env:     getEnv("APP_ENV", getEnv("NODE_ENV", "production")),
			Debug:   getEnvAsBool("DEBUG", false),
			Port:    getEnv("PORT", "3000"),
			Host:    getEnv("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "sqlite:///./contacts.db"),
		},
		Auth: AuthConfig{
			SecretKey:          getEnv("SECRET_KEY", ""),
			AdminToken:         getEnv("ADMIN_TOKEN", ""),
			AdminTokenHash:     getEnv("ADMIN_TOKEN_HASH", ""),
			TokenExpiryMinutes: getEnvAsInt("ADMIN_TOKEN_EXPIRE_MINUTES", 60),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         86400,
		},
		Email: EmailConfig{
			Enabled:          getEnvAsBool("EMAIL_ENABLED", true),
			SMTPHost:         getEnv("SMTP_HOST", ""),
			SMTPPort:         getEnvAsInt("SMTP_PORT", 587),
			Username:         getEnv("SMTP_USER", ""),
			Password:         getEnv("SMTP_PASS", ""),
			SenderName:       getEnv("SENDER_NAME", "Lucas Pinheiro"),
			SenderEmail:      getEnv("SENDER_EMAIL", ""),
			ReplyTo:          getEnv("REPLY_TO_EMAIL", ""),
			RecipientEmail:   getEnv("RECIPIENT_EMAIL", ""),
			UnsubscribeEmail: getEnv("UNSUBSCRIBE_EMAIL", ""),
			Timeout:          time.Duration(getEnvAsInt("SMTP_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Security: SecurityConfig{
			TrustedIPs: getEnvAsSlice("TRUSTED_IPS", nil),
			TrustProxy: getEnvAsBool("TRUST_PROXY", false),
		},
		Store: StoreConfig{
			Backend:  strings.ToLower(getEnv("STORE_BACKEND", "memory")),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
			Prefix:   getEnv("REDIS_PREFIX", "contactgate"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if config.Email.ReplyTo == "" {
		config.Email.ReplyTo = config.Email.SenderEmail
	}
	if config.Email.RecipientEmail == "" {
		config.Email.RecipientEmail = config.Email.SenderEmail
	}
	if config.Email.UnsubscribeEmail == "" {
		config.Email.UnsubscribeEmail = config.Email.SenderEmail
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.App.Port == "" {
		return fmt.Errorf("PORT must be set")
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.Auth.TokenExpiryMinutes <= 0 {
		return fmt.Errorf("ADMIN_TOKEN_EXPIRE_MINUTES must be greater than 0")
	}
	if cfg.Store.Backend != "memory" && cfg.Store.Backend != "redis" {
		return fmt.Errorf("STORE_BACKEND must be memory or redis, got %q", cfg.Store.Backend)
	}
	if cfg.Email.Enabled {
		if cfg.Email.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
		}
		if cfg.Email.SenderEmail == "" {
			return fmt.Errorf("SENDER_EMAIL must be set when EMAIL_ENABLED is true")
		}
	}
	return nil
}

// IsDevelopment reports whether error details may be exposed to clients
func (c *AppConfig) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev" || c.Debug
}

// IsTrusted reports whether ip is on the operator-configured allowlist
func (c *SecurityConfig) IsTrusted(ip string) bool {
	for _, trusted := range c.TrustedIPs {
		if strings.TrimSpace(trusted) == ip {
			return true
		}
	}
	return false
}

// Secure reports whether the SMTP connection uses implicit TLS
func (c *EmailConfig) Secure() bool {
	return c.SMTPPort == 465
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsPostgres checks if the database URL is for PostgreSQL
func (c *DatabaseConfig) IsPostgres() bool {
	return strings.HasPrefix(c.URL, "postgres://") || strings.HasPrefix(c.URL, "postgresql://") ||
		strings.Contains(c.URL, "host=")
}

// GetPostgresDSN returns the connection string handed to the postgres driver.
// pgx accepts both URL and key=value forms, so the URL is passed through.
func (c *DatabaseConfig) GetPostgresDSN() string {
	return c.URL
}

// GetSQLitePath extracts SQLite database path from URL
func (c *DatabaseConfig) GetSQLitePath() string {
	url := c.URL
	if strings.HasPrefix(url, "sqlite:///") {
		return url[len("sqlite:///"):]
	}
	return strings.TrimPrefix(url, "sqlite://")
}
