package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	// EventSlug selects the single event served by this process.
	EventSlug string
	EventName string

	WheelConfigPath string
	WheelWatch      bool

	SessionCookieName   string
	SessionCookieSecure bool
	CORSAllowedOrigins  []string

	// TrustedProxies may set X-Forwarded-For. Empty means the socket peer
	// is the client.
	TrustedProxies []string

	Bootstrap   BootstrapConfig
	RateLimit   RateLimitConfig
	MetricsPush MetricsPushConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

type BootstrapConfig struct {
	SeedDefaultEvent bool
}

// MetricsPushConfig ships the Prometheus registry to deployments that
// cannot scrape /metrics.
type MetricsPushConfig struct {
	Exporter        string
	Endpoint        string
	AuthToken       string
	IntervalSeconds int
}

// RateLimitConfig selects the limiter backend. The policy itself (limit and
// window) belongs to the wheel definition.
type RateLimitConfig struct {
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	KeyPrefix            string
	SweepIntervalSeconds int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	cookieSecure := environment == "production"
	if !cookieSecure {
		cookieSecure = getenvBool("SESSION_COOKIE_SECURE", false)
	}

	cfg := Config{
		AppName:             getenv("APP_SERVICE", "spinwheel"),
		AppVersion:          getenv("APP_VERSION", "0.1.0"),
		Environment:         environment,
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:        getenv("OTLP_ENDPOINT", "localhost:4317"),
		EventSlug:           strings.TrimSpace(getenv("EVENT_SLUG", "default")),
		EventName:           getenv("EVENT_NAME", "Default Event"),
		WheelConfigPath:     strings.TrimSpace(getenv("WHEEL_CONFIG", "")),
		WheelWatch:          getenvBool("WHEEL_WATCH", false),
		SessionCookieName:   getenv("SESSION_COOKIE_NAME", "sid"),
		SessionCookieSecure: cookieSecure,
		CORSAllowedOrigins:  parseList(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		TrustedProxies:      parseList(getenv("TRUSTED_PROXIES", "")),
		Bootstrap: BootstrapConfig{
			SeedDefaultEvent: getenvBool("BOOTSTRAP_SEED", environment != "production"),
		},
		RateLimit: RateLimitConfig{
			RedisAddr:            strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword:        strings.TrimSpace(getenv("RATE_LIMIT_REDIS_PASSWORD", "")),
			RedisDB:              getenvInt("RATE_LIMIT_REDIS_DB", 0),
			KeyPrefix:            getenv("RATE_LIMIT_KEY_PREFIX", "spinwheel:ratelimit:"),
			SweepIntervalSeconds: getenvInt("RATE_LIMIT_SWEEP_SECONDS", 60),
		},
		MetricsPush: MetricsPushConfig{
			Exporter:        strings.ToLower(strings.TrimSpace(getenv("METRICS_PUSH_EXPORTER", ""))),
			Endpoint:        strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken:       strings.TrimSpace(getenv("METRICS_PUSH_AUTH_TOKEN", "")),
			IntervalSeconds: getenvInt("METRICS_PUSH_INTERVAL_SECONDS", 30),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "spinwheel"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "spinthewheel.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
