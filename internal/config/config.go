package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	// ModeOffline serves question banks, scoring, and certificates from
	// the local database.
	ModeOffline Mode = "offline"
	// ModeOnline proxies content and scoring to the upstream platform.
	ModeOnline Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	SiteID   string

	DBDriver string
	DBDSN    string

	// Upstream platform (online mode).
	PlatformBaseURL string
	PlatformToken   string
	PlatformTimeout time.Duration

	AuthSecret   string
	TokenTTL     time.Duration
	AdminUser    string
	AdminPass    string // bootstrap credential, hashed on first run
	EnableSignup bool

	// Exam policy.
	DefaultExamDuration time.Duration
	MaxExamAttempts     int // 0 = unlimited module-exam retakes

	CORSOrigins []string
}

// FromEnv loads configuration from the environment, reading a .env file
// first when one is present.
func FromEnv() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		SiteID:   envOr("SITE_ID", "local"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		PlatformBaseURL: envOr("PLATFORM_BASE_URL", "https://api.learnify.example.com"),
		PlatformToken:   os.Getenv("PLATFORM_TOKEN"),
		PlatformTimeout: envDuration("PLATFORM_TIMEOUT", 15*time.Second),

		AuthSecret:   envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		TokenTTL:     envDuration("TOKEN_TTL", 8*time.Hour),
		AdminUser:    envOr("ADMIN_USER", "admin"),
		AdminPass:    envOr("ADMIN_PASS", "admin"),
		EnableSignup: envBool("ENABLE_SIGNUP", mode == ModeOffline),

		DefaultExamDuration: envDuration("DEFAULT_EXAM_DURATION", 30*time.Minute),
		MaxExamAttempts:     envInt("MAX_EXAM_ATTEMPTS", 0),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
