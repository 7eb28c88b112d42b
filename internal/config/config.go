package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Cluster drivers.
const (
	ClusterNone  = "none"
	ClusterRedis = "redis"
	ClusterNATS  = "nats"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	NATS       NATSConfig
	Auth       AuthConfig
	Server     ServerConfig
	Hub        HubConfig
	Cluster    ClusterConfig
	Log        LogConfig
	SelfHosted bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string //nolint:gosec // G117: DB connection config
	DBName      string
	SSLMode     string
	MaxConns    int
	AutoMigrate bool
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL string
}

// AuthConfig holds token validation settings.
type AuthConfig struct {
	JWTSecret          string //nolint:gosec // G117: JWT signing secret config
	SingleUserToken    string //nolint:gosec // G117: single-user mode token
	AdminAPIKeyHash    string
	PublicSharedBoards bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	// WSRateLimit is the number of websocket upgrades allowed per IP per minute.
	WSRateLimit int
	WSBurst     int
}

// HubConfig holds real-time hub settings.
type HubConfig struct {
	QueueSize           int
	SweepInterval       time.Duration
	StaleThreshold      time.Duration
	WriteTimeout        time.Duration
	PingInterval        time.Duration
	PermissionCacheTTL  time.Duration
	PermissionCacheSize int
}

// ClusterConfig selects how hub nodes exchange events.
type ClusterConfig struct {
	Driver  string
	Channel string
	NodeID  string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("BOARDSYNC_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("BOARDSYNC_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbAutoMigrate, err := getEnvBool("BOARDSYNC_DB_AUTO_MIGRATE", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("BOARDSYNC_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	publicShared, err := getEnvBool("BOARDSYNC_PUBLIC_SHARED_BOARDS", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("BOARDSYNC_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("BOARDSYNC_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	wsRateLimit, err := getEnvInt("BOARDSYNC_WS_RATE_LIMIT", 60)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	wsBurst, err := getEnvInt("BOARDSYNC_WS_BURST", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	queueSize, err := getEnvInt("BOARDSYNC_HUB_QUEUE_SIZE", 64)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sweepInterval, err := getEnvDuration("BOARDSYNC_HUB_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	staleThreshold, err := getEnvDuration("BOARDSYNC_HUB_STALE_THRESHOLD", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	hubWriteTimeout, err := getEnvDuration("BOARDSYNC_HUB_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	pingInterval, err := getEnvDuration("BOARDSYNC_HUB_PING_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	permCacheTTL, err := getEnvDuration("BOARDSYNC_PERMISSION_CACHE_TTL", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	permCacheSize, err := getEnvInt("BOARDSYNC_PERMISSION_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("BOARDSYNC_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("BOARDSYNC_CORS_ORIGINS", []string{"http://localhost:3000"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:        getEnv("BOARDSYNC_DB_HOST", "localhost"),
			Port:        dbPort,
			User:        getEnv("BOARDSYNC_DB_USER", "boardsync"),
			Password:    getEnv("BOARDSYNC_DB_PASSWORD", ""),
			DBName:      getEnv("BOARDSYNC_DB_NAME", "boards"),
			SSLMode:     getEnv("BOARDSYNC_DB_SSLMODE", "disable"),
			MaxConns:    dbMaxConns,
			AutoMigrate: dbAutoMigrate,
		},
		Redis: RedisConfig{
			Addr:     getEnv("BOARDSYNC_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("BOARDSYNC_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		NATS: NATSConfig{
			URL: getEnv("BOARDSYNC_NATS_URL", "nats://localhost:4222"),
		},
		Auth: AuthConfig{
			JWTSecret:          getEnv("BOARDSYNC_JWT_SECRET", ""),
			SingleUserToken:    getEnv("BOARDSYNC_SINGLE_USER_TOKEN", ""),
			AdminAPIKeyHash:    getEnv("BOARDSYNC_ADMIN_API_KEY_HASH", ""),
			PublicSharedBoards: publicShared,
		},
		Server: ServerConfig{
			Addr:         getEnv("BOARDSYNC_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
			WSRateLimit:  wsRateLimit,
			WSBurst:      wsBurst,
		},
		Hub: HubConfig{
			QueueSize:           queueSize,
			SweepInterval:       sweepInterval,
			StaleThreshold:      staleThreshold,
			WriteTimeout:        hubWriteTimeout,
			PingInterval:        pingInterval,
			PermissionCacheTTL:  permCacheTTL,
			PermissionCacheSize: permCacheSize,
		},
		Cluster: ClusterConfig{
			Driver:  strings.ToLower(getEnv("BOARDSYNC_CLUSTER_DRIVER", ClusterNone)),
			Channel: getEnv("BOARDSYNC_CLUSTER_CHANNEL", "boardsync"),
			NodeID:  getEnv("BOARDSYNC_NODE_ID", ""),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("BOARDSYNC_LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("BOARDSYNC_LOG_FORMAT", "json")),
		},
		SelfHosted: selfHosted,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// Either a JWT secret or single-user mode is required (no insecure default).
	if c.Auth.JWTSecret == "" && c.Auth.SingleUserToken == "" {
		return errors.New("BOARDSYNC_JWT_SECRET or BOARDSYNC_SINGLE_USER_TOKEN is required")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return errors.New("BOARDSYNC_JWT_SECRET must be at least 32 characters")
	}
	if c.Auth.AdminAPIKeyHash != "" && !strings.Contains(c.Auth.AdminAPIKeyHash, "$") {
		return errors.New("BOARDSYNC_ADMIN_API_KEY_HASH must be a salt$hash value from `boardsync hash-key`")
	}

	// DB SSL mode warning for non-self-hosted deployments.
	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("BOARDSYNC_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("BOARDSYNC_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("BOARDSYNC_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.WSRateLimit < 1 {
		return fmt.Errorf("BOARDSYNC_WS_RATE_LIMIT must be >= 1, got %d", c.Server.WSRateLimit)
	}
	if c.Server.WSBurst < 1 {
		return fmt.Errorf("BOARDSYNC_WS_BURST must be >= 1, got %d", c.Server.WSBurst)
	}
	if c.Hub.QueueSize < 1 {
		return fmt.Errorf("BOARDSYNC_HUB_QUEUE_SIZE must be >= 1, got %d", c.Hub.QueueSize)
	}
	if c.Hub.SweepInterval <= 0 {
		return fmt.Errorf("BOARDSYNC_HUB_SWEEP_INTERVAL must be positive, got %s", c.Hub.SweepInterval)
	}
	if c.Hub.StaleThreshold <= 0 {
		return fmt.Errorf("BOARDSYNC_HUB_STALE_THRESHOLD must be positive, got %s", c.Hub.StaleThreshold)
	}
	if c.Hub.WriteTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_HUB_WRITE_TIMEOUT must be positive, got %s", c.Hub.WriteTimeout)
	}
	if c.Hub.PingInterval <= 0 {
		return fmt.Errorf("BOARDSYNC_HUB_PING_INTERVAL must be positive, got %s", c.Hub.PingInterval)
	}
	// A zero TTL disables the permission cache.
	if c.Hub.PermissionCacheTTL < 0 {
		return fmt.Errorf("BOARDSYNC_PERMISSION_CACHE_TTL must not be negative, got %s", c.Hub.PermissionCacheTTL)
	}
	if c.Hub.PermissionCacheSize < 1 {
		return fmt.Errorf("BOARDSYNC_PERMISSION_CACHE_SIZE must be >= 1, got %d", c.Hub.PermissionCacheSize)
	}

	switch c.Cluster.Driver {
	case ClusterNone, ClusterRedis:
	case ClusterNATS:
		if c.NATS.URL == "" {
			return errors.New("BOARDSYNC_NATS_URL is required when BOARDSYNC_CLUSTER_DRIVER=nats")
		}
	default:
		return fmt.Errorf("BOARDSYNC_CLUSTER_DRIVER must be one of none, redis, nats, got %q", c.Cluster.Driver)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("BOARDSYNC_LOG_LEVEL: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("BOARDSYNC_LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
