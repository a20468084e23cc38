package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"
)

// Config carries everything the server needs from the environment. It is
// built once in main and handed to the components that need it, so nothing
// reads process env after startup.
type Config struct {
	Addr string
	Env  string // development or production

	MongoURI string
	MongoDB  string

	// BaseURL is the externally visible origin used when building links
	// that get emailed to users.
	BaseURL string

	JWTSecret    string
	JWTExpire    time.Duration
	CookieExpire time.Duration

	// OTPEncryptionKey protects TOTP secrets at rest. 32 bytes, hex-encoded
	// in the environment.
	OTPEncryptionKey []byte

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

// Load reads configuration from the environment, applying defaults where a
// value is optional.
func Load() (*Config, error) {
	cfg := &Config{
		Addr: ":" + getenv("PORT", "5000"),
		Env:  getenv("APP_ENV", "development"),

		MongoURI: getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getenv("MONGO_DB", "campauth"),

		BaseURL: getenv("BASE_URL", "http://localhost:5000"),

		JWTExpire:    getdur("JWT_EXPIRE", 30*24*time.Hour),
		CookieExpire: getdur("JWT_COOKIE_EXPIRE", 30*24*time.Hour),

		SMTPHost:     getenv("SMTP_HOST", "localhost"),
		SMTPPort:     getenv("SMTP_PORT", "25"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		FromEmail:    getenv("FROM_EMAIL", "noreply@campauth.local"),
		FromName:     getenv("FROM_NAME", "CampAuth"),
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	keyHex := os.Getenv("OTP_ENCRYPTION_KEY")
	if keyHex == "" {
		return nil, fmt.Errorf("OTP_ENCRYPTION_KEY is required")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("OTP_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("OTP_ENCRYPTION_KEY must be 32 bytes, got %d", len(key))
	}
	cfg.OTPEncryptionKey = key

	return cfg, nil
}

// IsProduction reports whether the server runs with production settings
// (secure cookies, combined access logs).
func (c *Config) IsProduction() bool { return c.Env == "production" }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
