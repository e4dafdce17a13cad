// Package config loads tunehall settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds all application configuration
type Config struct {
	Store    StoreConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Server   ServerConfig
	Security SecurityConfig
	CORS     CORSConfig
	Logging  LoggingConfig
	Engine   EngineConfig
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string // Full PostgreSQL URL
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// MongoConfig holds MongoDB connection settings
type MongoConfig struct {
	URI      string
	Database string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port int
	Host string
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds security-related settings. An empty JWTSecret turns
// token checks off.
type SecurityConfig struct {
	JWTSecret string
	JWTIssuer string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// EngineConfig tunes the lifecycle and relationship engine.
type EngineConfig struct {
	ConflictRetries int
	SeedDemo        bool
}

// Load reads configuration from environment variables, after loading any
// of the given .env files that exist.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}

	cfg := &Config{}

	if err := cfg.loadDatabase(); err != nil {
		return nil, fmt.Errorf("load database config: %w", err)
	}
	if err := cfg.loadServer(); err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	if err := cfg.loadEngine(); err != nil {
		return nil, fmt.Errorf("load engine config: %w", err)
	}
	cfg.loadSecurity()
	cfg.loadCORS()
	cfg.loadLogging()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadDatabase() error {
	c.Store.Driver = strings.ToLower(getEnvOrDefault("STORE_DRIVER", DriverMemory))

	c.Mongo.URI = getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017")
	c.Mongo.Database = getEnvOrDefault("MONGO_DATABASE", "tunehall")

	c.Database.URL = os.Getenv("DATABASE_URL")
	if c.Database.URL != "" {
		return nil
	}

	c.Database.Host = getEnvOrDefault("DB_HOST", "localhost")
	c.Database.User = os.Getenv("DB_USER")
	c.Database.Password = os.Getenv("DB_PASSWORD")
	c.Database.Name = os.Getenv("DB_NAME")
	c.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	if err != nil {
		return fmt.Errorf("invalid DB_PORT: %w", err)
	}
	c.Database.Port = port

	if c.Database.Host != "" && c.Database.User != "" && c.Database.Name != "" {
		c.Database.URL = fmt.Sprintf(
			"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
			c.Database.User,
			c.Database.Password,
			c.Database.Host,
			c.Database.Port,
			c.Database.Name,
			c.Database.SSLMode,
		)
	}
	return nil
}

func (c *Config) loadServer() error {
	port, err := strconv.Atoi(getEnvOrDefault("PORT", "8080"))
	if err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}
	c.Server.Port = port
	c.Server.Host = getEnvOrDefault("HOST", "0.0.0.0")
	return nil
}

func (c *Config) loadEngine() error {
	retries, err := strconv.Atoi(getEnvOrDefault("CONFLICT_RETRIES", "5"))
	if err != nil {
		return fmt.Errorf("invalid CONFLICT_RETRIES: %w", err)
	}
	c.Engine.ConflictRetries = retries

	seed, err := strconv.ParseBool(getEnvOrDefault("SEED_DEMO", "false"))
	if err != nil {
		return fmt.Errorf("invalid SEED_DEMO: %w", err)
	}
	c.Engine.SeedDemo = seed
	return nil
}

func (c *Config) loadSecurity() {
	c.Security.JWTSecret = os.Getenv("JWT_SECRET")
	c.Security.JWTIssuer = os.Getenv("JWT_ISSUER")
}

func (c *Config) loadCORS() {
	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	if originsEnv == "" {
		// Default for local development
		c.CORS.AllowedOrigins = []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}
		return
	}
	for _, origin := range strings.Split(originsEnv, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			c.CORS.AllowedOrigins = append(c.CORS.AllowedOrigins, origin)
		}
	}
}

func (c *Config) loadLogging() {
	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", "info")
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", "json")
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	var errors []string

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.URL == "" {
			errors = append(errors, "DATABASE_URL is required (or DB_HOST, DB_USER, DB_NAME) for the postgres driver")
		}
	case DriverMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			errors = append(errors, "MONGO_URI and MONGO_DATABASE are required for the mongo driver")
		}
	default:
		errors = append(errors, "STORE_DRIVER must be one of: memory, postgres, mongo")
	}

	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 16 {
		errors = append(errors, "JWT_SECRET must be at least 16 characters")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "PORT must be between 1 and 65535")
	}

	if c.Engine.ConflictRetries < 0 {
		errors = append(errors, "CONFLICT_RETRIES must not be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		errors = append(errors, "LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		errors = append(errors, "LOG_FORMAT must be one of: json, text")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
