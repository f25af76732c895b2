package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers
const (
	DriverMongoDB = "mongodb"
	DriverRedis   = "redis"
	DriverMemory  = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Store       StoreConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Debug       DebugConfig
	Study       StudyConfig
	RateLimit   RateLimitConfig
	LogLevel    string
	Development bool
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port            string
	AllowedHosts    []string
	ShutdownTimeout time.Duration
}

// StoreConfig selects the document store backend
type StoreConfig struct {
	Driver string
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// AuthConfig controls how callers are identified
type AuthConfig struct {
	JWTSecret             string
	Issuer                string
	TokenTTL              time.Duration
	TrustPrincipalHeaders bool
}

// DebugConfig gates the admin override endpoints
type DebugConfig struct {
	Enabled   bool
	TokenHash string
}

// StudyConfig holds the experiment tuning knobs
type StudyConfig struct {
	SessionWindow    time.Duration
	MaxWriteAttempts int
	BaseBackoff      time.Duration
}

// RateLimitConfig holds the per-user request limits
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// Load loads configuration from defaults, an optional config file and the
// environment. Nested keys map to environment variables with "." replaced by
// "_", e.g. MONGODB_URI or STUDY_SESSIONWINDOW. An empty path searches for
// config.yaml in "." and "./config".
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "4000")
	v.SetDefault("Server.AllowedHosts", []string{"http://localhost:3000"})
	v.SetDefault("Server.ShutdownTimeout", 5*time.Second)
	v.SetDefault("Store.Driver", DriverMongoDB)
	v.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	v.SetDefault("MongoDB.Database", "study")
	v.SetDefault("MongoDB.Collection", "profiles")
	v.SetDefault("MongoDB.Timeout", 10*time.Second)
	v.SetDefault("Redis.Addr", "localhost:6379")
	v.SetDefault("Redis.Password", "")
	v.SetDefault("Redis.DB", 0)
	v.SetDefault("Redis.Prefix", "study:")
	v.SetDefault("Auth.JWTSecret", "")
	v.SetDefault("Auth.Issuer", "study-profile-backend")
	v.SetDefault("Auth.TokenTTL", 24*time.Hour)
	v.SetDefault("Auth.TrustPrincipalHeaders", false)
	v.SetDefault("Debug.Enabled", false)
	v.SetDefault("Debug.TokenHash", "")
	v.SetDefault("Study.SessionWindow", 30*time.Minute)
	v.SetDefault("Study.MaxWriteAttempts", 3)
	v.SetDefault("Study.BaseBackoff", 500*time.Millisecond)
	v.SetDefault("RateLimit.PerMinute", 120)
	v.SetDefault("RateLimit.Burst", 20)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("Development", false)
}

// bindLegacyEnv lets deployments that still export the Cosmos DB variable
// names keep working. The first variable set wins.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"MongoDB.URI":        {"MONGODB_URI", "AZURE_COSMOSDB_MONGODB_URI"},
		"MongoDB.Database":   {"MONGODB_DATABASE", "AZURE_COSMOSDB_DATABASE"},
		"MongoDB.Collection": {"MONGODB_COLLECTION", "AZURE_COSMOSDB_CONVERSATIONS_CONTAINER"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMongoDB:
		if c.MongoDB.URI == "" || c.MongoDB.Database == "" || c.MongoDB.Collection == "" {
			errs = append(errs, errors.New("mongodb store needs URI, Database and Collection"))
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis store needs Addr"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is empty"))
	}
	if c.Study.SessionWindow <= 0 {
		errs = append(errs, errors.New("study session window must be positive"))
	}
	if c.Study.MaxWriteAttempts < 1 {
		errs = append(errs, errors.New("study max write attempts must be at least 1"))
	}
	if c.Study.BaseBackoff < 0 {
		errs = append(errs, errors.New("study base backoff is negative"))
	}
	if c.RateLimit.PerMinute < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate limit values are negative"))
	}
	if c.Auth.JWTSecret == "" && !c.Auth.TrustPrincipalHeaders {
		errs = append(errs, errors.New("no identity source: set Auth.JWTSecret or Auth.TrustPrincipalHeaders"))
	}
	return errors.Join(errs...)
}
