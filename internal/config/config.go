package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment       string
	HTTPPort          string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	SigningKey        []byte
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	OTPTTL            time.Duration
	HandshakeTTL      time.Duration
	CookieDomain      string
	GoogleClientID    string
	GoogleSecret      string
	GoogleRedirectURL string
	DashboardURL      string
	MailFrom          string
	SMTPAddr          string
	ServiceName       string
	RateLimitRPM      int
	TelemetryEndpoint string
	TelemetryInsecure bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	signingKey := strings.TrimSpace(os.Getenv("SIGNING_KEY"))
	if signingKey == "" {
		return Config{}, fmt.Errorf("SIGNING_KEY is required")
	}
	if len(signingKey) < 32 {
		return Config{}, fmt.Errorf("SIGNING_KEY must be at least 32 bytes")
	}

	cfg := Config{
		Environment:       getEnv("APP_ENV", "development"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getInt("REDIS_DB", 0),
		SigningKey:        []byte(signingKey),
		AccessTokenTTL:    getDuration("ACCESS_TOKEN_TTL", 2*time.Hour),
		RefreshTokenTTL:   getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		OTPTTL:            getDuration("OTP_TTL", 10*time.Minute),
		HandshakeTTL:      getDuration("OAUTH_HANDSHAKE_TTL", 10*time.Minute),
		CookieDomain:      os.Getenv("COOKIE_DOMAIN"),
		GoogleClientID:    os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleSecret:      os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL: os.Getenv("GOOGLE_REDIRECT_URI"),
		DashboardURL:      getEnv("DASHBOARD_URL", "/"),
		MailFrom:          getEnv("MAIL_FROM", "no-reply@localhost"),
		SMTPAddr:          getEnv("SMTP_ADDR", "127.0.0.1:25"),
		ServiceName:       getEnv("SERVICE_NAME", "auth"),
		RateLimitRPM:      getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	googleSet := cfg.GoogleClientID != "" || cfg.GoogleSecret != "" || cfg.GoogleRedirectURL != ""
	if googleSet && !cfg.OAuthEnabled() {
		return Config{}, fmt.Errorf("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URI must be set together")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= cfg.AccessTokenTTL {
		return Config{}, fmt.Errorf("REFRESH_TOKEN_TTL must exceed ACCESS_TOKEN_TTL")
	}

	return cfg, nil
}

// Debug reports whether the service runs outside production. Cookie
// security flags relax only when this is true.
func (c Config) Debug() bool {
	return c.Environment == "development"
}

// OAuthEnabled reports whether the Google sign-in flow is configured.
// OTP-only deployments leave the provider variables unset.
func (c Config) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleSecret != "" && c.GoogleRedirectURL != ""
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}
