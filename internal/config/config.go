package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	LedgerDriverCouchDB = "couchdb"
	LedgerDriverSQLite  = "sqlite"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Ledger    LedgerConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Logging   LoggingConfig
	Sync      SyncConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// URL returns the CouchDB connection string with credentials embedded.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("http://%s:%s@%s:%s", c.User, c.Password, c.Host, c.Port)
}

// LedgerConfig selects where change records and shared task links live.
// Users and teams always stay in CouchDB.
type LedgerConfig struct {
	Driver     string
	SQLitePath string
}

type JWTConfig struct {
	Secret                 string
	Expiration             time.Duration
	RefreshTokenExpiration time.Duration
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxConnPerUser  int
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// ReportCaller adds file:line to every entry.
	ReportCaller bool
}

type SyncConfig struct {
	// PullHorizon bounds a pull that carries no lastSyncAt.
	PullHorizon time.Duration
	// ChangesLookback is the default window of the changes-since query.
	ChangesLookback time.Duration
	// Retention is the default age used by the compact command.
	Retention time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	jwtExp, err := getEnvAsDuration("JWT_EXPIRATION", "15m")
	if err != nil {
		return nil, err
	}

	refreshExp, err := getEnvAsDuration("REFRESH_TOKEN_EXPIRATION", "168h")
	if err != nil {
		return nil, err
	}

	pullHorizon, err := getEnvAsDuration("SYNC_PULL_HORIZON", "87600h")
	if err != nil {
		return nil, err
	}

	lookback, err := getEnvAsDuration("SYNC_CHANGES_LOOKBACK", "168h")
	if err != nil {
		return nil, err
	}

	retention, err := getEnvAsDuration("SYNC_RETENTION", "8760h")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5984"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "taskflow"),
		},
		Ledger: LedgerConfig{
			Driver:     getEnv("LEDGER_DRIVER", LedgerDriverCouchDB),
			SQLitePath: getEnv("LEDGER_SQLITE_PATH", "taskflow-ledger.db"),
		},
		JWT: JWTConfig{
			Secret:                 getEnv("JWT_SECRET", "dev-secret-change-in-production"),
			Expiration:             jwtExp,
			RefreshTokenExpiration: refreshExp,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 4096),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 4096),
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
			PingPeriod:      54 * time.Second,
			MaxConnPerUser:  getEnvAsInt("WS_MAX_CONN_PER_USER", 5),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Logging: LoggingConfig{
			Level:        getEnv("LOG_LEVEL", "info"),
			Format:       getEnv("LOG_FORMAT", "text"),
			File:         getEnv("LOG_FILE", ""),
			MaxSizeMB:    getEnvAsInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups:   getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays:   getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
			ReportCaller: getEnvAsBool("LOG_REPORT_CALLER", false),
		},
		Sync: SyncConfig{
			PullHorizon:     pullHorizon,
			ChangesLookback: lookback,
			Retention:       retention,
		},
	}

	switch cfg.Ledger.Driver {
	case LedgerDriverCouchDB, LedgerDriverSQLite:
	default:
		return nil, fmt.Errorf("invalid LEDGER_DRIVER %q", cfg.Ledger.Driver)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
