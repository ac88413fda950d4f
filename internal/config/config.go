package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends understood by persistence.OpenStore.
const (
	StoreBackendMemory    = "memory"
	StoreBackendPostgres  = "postgres"
	StoreBackendSQLite    = "sqlite"
	StoreBackendFirestore = "firestore"
)

// Identity providers understood by the auth middleware.
const (
	AuthProviderLocal    = "local"
	AuthProviderFirebase = "firebase"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	SQLite       SQLiteConfig
	Firebase     FirebaseConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Tickets      TicketConfig
	Lookup       LookupConfig
	Auth         AuthConfig
	AI           AIConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Backend string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// SQLiteConfig holds the embedded database location.
type SQLiteConfig struct {
	Path string
}

// FirebaseConfig holds Firebase project and credential settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsJSON string
	CredentialsFile string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// TicketConfig tunes ticket number allocation.
type TicketConfig struct {
	Prefix         string
	CounterKey     string
	MaxAttempts    int
	RetryBackoffMS int
}

// LookupConfig tunes the read-side cache.
type LookupConfig struct {
	CacheTTLSeconds int
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	Provider              string
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// AIConfig configures the diagnosis text generator.
type AIConfig struct {
	OpenAIKey   string
	OpenAIModel string
	BaseURL     string
	UseMock     bool
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", StoreBackendMemory)),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "helpdesk.db"),
		},
		Firebase: FirebaseConfig{
			ProjectID:       os.Getenv("FIRESTORE_PROJECT_ID"),
			CredentialsJSON: os.Getenv("FIREBASE_CREDENTIALS_JSON"),
			CredentialsFile: os.Getenv("FIREBASE_CREDENTIALS_FILE"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Tickets: TicketConfig{
			Prefix:         getEnv("TICKET_PREFIX", "TDHS"),
			CounterKey:     getEnv("TICKET_COUNTER_KEY", "tickets"),
			MaxAttempts:    getEnvAsInt("TICKET_MAX_ATTEMPTS", 5),
			RetryBackoffMS: getEnvAsInt("TICKET_RETRY_BACKOFF_MS", 20),
		},
		Lookup: LookupConfig{
			CacheTTLSeconds: getEnvAsInt("LOOKUP_CACHE_TTL_SECONDS", 60),
		},
		Auth: AuthConfig{
			Provider:              strings.ToLower(getEnv("AUTH_PROVIDER", AuthProviderLocal)),
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		AI: AIConfig{
			OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
			OpenAIModel: getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL:     os.Getenv("OPENAI_BASE_URL"),
			UseMock:     getEnvAsBool("AI_USE_MOCK", false),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StoreBackendMemory, StoreBackendSQLite:
	case StoreBackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("POSTGRES_DSN required for store backend %q", c.Store.Backend)
		}
	case StoreBackendFirestore:
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID required for store backend %q", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.Auth.Provider {
	case AuthProviderLocal, AuthProviderFirebase:
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.Auth.Provider)
	}

	if c.Tickets.MaxAttempts <= 0 {
		return fmt.Errorf("TICKET_MAX_ATTEMPTS must be positive, got %d", c.Tickets.MaxAttempts)
	}
	if strings.TrimSpace(c.Tickets.Prefix) == "" {
		return fmt.Errorf("TICKET_PREFIX must not be empty")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// RetryBackoff returns the base pause between allocation attempts.
func (t TicketConfig) RetryBackoff() time.Duration {
	if t.RetryBackoffMS <= 0 {
		return 0
	}
	return time.Duration(t.RetryBackoffMS) * time.Millisecond
}

// CacheTTL returns how long lookup entries stay cached.
func (l LookupConfig) CacheTTL() time.Duration {
	if l.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(l.CacheTTLSeconds) * time.Second
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
