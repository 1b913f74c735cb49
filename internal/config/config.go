package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const EnvProduction = "production"

type Config struct {
	AppEnv   string
	HTTPAddr string
	LogLevel string

	DatabaseDriver string
	DatabaseURL    string

	CORSOrigins []string

	JWTSecret  string
	SessionTTL time.Duration

	AdminUsername     string
	AdminPasswordHash string

	OTP OTPConfig
	SMS SMSConfig
}

// OTPConfig holds the phone verification policy knobs that are allowed to
// vary per deployment. Window, cooldown and code TTL are fixed in the service.
type OTPConfig struct {
	Secret        string
	DefaultRegion string
	Debug         bool
	MaxAttempts   int
	LockDuration  time.Duration
}

type SMSConfig struct {
	ProviderURL string
	APIKey      string
	Timeout     time.Duration
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found")
	}

	return FromEnv()
}

// FromEnv builds the config from the current process environment only.
func FromEnv() *Config {
	return &Config{
		AppEnv:   getString("APP_ENV", "development"),
		HTTPAddr: getString("HTTP_ADDR", ":8080"),
		LogLevel: getString("LOG_LEVEL", "info"),

		DatabaseDriver: getString("DATABASE_DRIVER", "postgres"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		CORSOrigins: parseList(getString("CORS_ORIGINS", "http://localhost:3000")),

		JWTSecret:  os.Getenv("JWT_SECRET"),
		SessionTTL: getDuration("SESSION_TTL", 24*time.Hour),

		AdminUsername:     getString("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		OTP: OTPConfig{
			Secret:        os.Getenv("OTP_SECRET"),
			DefaultRegion: getString("OTP_DEFAULT_REGION", "PY"),
			Debug:         getBool("OTP_DEBUG", false),
			MaxAttempts:   getInt("OTP_MAX_ATTEMPTS", 5),
			LockDuration:  getDuration("OTP_LOCK_DURATION", 15*time.Minute),
		},
		SMS: SMSConfig{
			ProviderURL: os.Getenv("SMS_PROVIDER_URL"),
			APIKey:      os.Getenv("SMS_API_KEY"),
			Timeout:     getDuration("SMS_TIMEOUT", 10*time.Second),
		},
	}
}

func parseList(csv string) []string {
	var out []string
	for _, item := range strings.Split(csv, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
