package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverFile     = "file"
	StoreDriverSQLite   = "sqlite"
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config aggregates runtime configuration for the client.
type Config struct {
	App     AppConfig
	API     APIConfig
	Geocode GeocodeConfig
	Store   StoreConfig
	Logger  LoggerConfig
	Auth    AuthConfig
}

// AppConfig identifies the running client.
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// APIConfig points at the occurrence REST backend.
type APIConfig struct {
	BaseURL               string
	RequestTimeoutSeconds int
}

// GeocodeConfig points at a Nominatim compatible reverse geocoder.
type GeocodeConfig struct {
	BaseURL   string
	UserAgent string
}

// StoreConfig selects and configures the persistent key-value store.
type StoreConfig struct {
	Driver         string
	FilePath       string
	SQLitePath     string
	AdminNamespace string
	Redis          RedisConfig
	Postgres       PostgresConfig
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN           string
	MaxConns      int32
	MinConns      int32
	RunMigrations bool
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is "json" or "console".
	Format string
}

// AuthConfig parameterizes the in-process fake backend used by tests.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	dataDir := defaultDataDir()

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "occurrence-client"),
			Env:     getEnv("APP_ENV", "development"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		API: APIConfig{
			BaseURL:               strings.TrimRight(getEnv("API_URL", "http://10.0.2.2:3000"), "/"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 0),
		},
		Geocode: GeocodeConfig{
			BaseURL:   strings.TrimRight(getEnv("GEOCODE_API_URL", "https://nominatim.openstreetmap.org"), "/"),
			UserAgent: getEnv("GEOCODE_USER_AGENT", "occurrence-client"),
		},
		Store: StoreConfig{
			Driver:         strings.ToLower(getEnv("STORE_DRIVER", StoreDriverFile)),
			FilePath:       getEnv("STORE_FILE_PATH", filepath.Join(dataDir, "session.json")),
			SQLitePath:     getEnv("STORE_SQLITE_PATH", filepath.Join(dataDir, "session.db")),
			AdminNamespace: getEnv("STORE_ADMIN_NAMESPACE", "admin"),
			Redis: RedisConfig{
				Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
				Password:  os.Getenv("REDIS_PASSWORD"),
				DB:        redisDB,
				KeyPrefix: getEnv("REDIS_KEY_PREFIX", "occurrence:"),
			},
			Postgres: PostgresConfig{
				DSN:           os.Getenv("POSTGRES_DSN"),
				MaxConns:      int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4)),
				MinConns:      int32(getEnvAsInt("POSTGRES_MIN_CONNS", 0)),
				RunMigrations: getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			},
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
	}

	if err := cfg.Store.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequestTimeout returns the configured request timeout duration; zero means none.
func (a APIConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func (s StoreConfig) validate() error {
	switch s.Driver {
	case StoreDriverFile, StoreDriverSQLite, StoreDriverRedis, StoreDriverMemory:
		return nil
	case StoreDriverPostgres:
		if s.Postgres.DSN == "" {
			return fmt.Errorf("STORE_DRIVER=postgres requires POSTGRES_DSN")
		}
		return nil
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", s.Driver)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".occurrence"
	}
	return filepath.Join(home, ".occurrence")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
