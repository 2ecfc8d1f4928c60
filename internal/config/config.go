package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"

	IdentityRemote = "remote"
	IdentityJWT    = "jwt"
)

type Config struct {
	Server ServerConfig `json:"server"`

	// Relational store (mysql or postgres), selected by Database.Driver
	Database DatabaseConfig `json:"database"`

	// Used when Database.Driver is "mongo"
	MongoDB MongoDBConfig `json:"mongodb"`

	// Managed identity platform
	Platform PlatformConfig `json:"platform"`

	// Cross-instance realtime fan-out
	Redis RedisConfig `json:"redis"`

	Realtime RealtimeConfig `json:"realtime"`

	Chat ChatConfig `json:"chat"`

	Logging LoggingConfig `json:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port           string   `json:"port"`
	Host           string   `json:"host"`
	OpsPort        string   `json:"ops_port"`
	ReadTimeout    int      `json:"read_timeout"`
	WriteTimeout   int      `json:"write_timeout"`
	Environment    string   `json:"environment"` // development, staging, production
	AllowedOrigins []string `json:"allowed_origins"`
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Driver       string `json:"driver"` // mysql, postgres, mongo
	Host         string `json:"host"`
	Port         string `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DatabaseName string `json:"database_name"`
	SSLMode      string `json:"ssl_mode"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

type MongoDBConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// PlatformConfig holds the identity platform settings. ServiceKey is the
// elevated credential and must only reach the admin directory.
type PlatformConfig struct {
	URL          string        `json:"url"`
	ServiceKey   string        `json:"-"`
	AnonKey      string        `json:"-"`
	JWTSecret    string        `json:"-"`
	IdentityMode string        `json:"identity_mode"` // remote, jwt
	JWTAudience  string        `json:"jwt_audience"`
	Timeout      time.Duration `json:"timeout"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// RealtimeConfig sizes the in-process fan-out hub
type RealtimeConfig struct {
	Workers           int `json:"workers"`
	ChannelBufferSize int `json:"channel_buffer_size"`
}

type ChatConfig struct {
	MaxMessageLength int `json:"max_message_length"` // runes
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // json, text
	OutputPath string `json:"output_path"` // stdout, stderr, or file path
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", ""),
			Port:           getEnv("PORT", "4000"),
			OpsPort:        getEnv("OPS_PORT", "4001"),
			ReadTimeout:    getEnvAsInt("READ_TIMEOUT", 15),
			WriteTimeout:   getEnvAsInt("WRITE_TIMEOUT", 15),
			Environment:    getEnv("ENVIRONMENT", "development"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(getEnv("STORE_DRIVER", DriverMySQL)),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", ""),
			Username:     getEnv("DB_USER", "gochat"),
			Password:     getEnv("DB_PASSWORD", "gochat123"),
			DatabaseName: getEnv("DB_NAME", "gochat"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		MongoDB: MongoDBConfig{
			Host:     getEnv("MONGO_HOST", "localhost"),
			Port:     getEnv("MONGO_PORT", "27017"),
			Username: getEnv("MONGO_USERNAME", ""),
			Password: getEnv("MONGO_PASSWORD", ""),
			Database: getEnv("MONGO_DATABASE", "gochat"),
		},
		Platform: PlatformConfig{
			URL:          strings.TrimRight(getEnv("PLATFORM_URL", ""), "/"),
			ServiceKey:   getEnv("PLATFORM_SERVICE_KEY", ""),
			AnonKey:      getEnv("PLATFORM_ANON_KEY", ""),
			JWTSecret:    getEnv("PLATFORM_JWT_SECRET", ""),
			IdentityMode: strings.ToLower(getEnv("IDENTITY_MODE", IdentityRemote)),
			JWTAudience:  getEnv("PLATFORM_JWT_AUDIENCE", "authenticated"),
			Timeout:      getEnvAsDuration("PLATFORM_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Realtime: RealtimeConfig{
			Workers:           getEnvAsInt("REALTIME_WORKERS", 4),
			ChannelBufferSize: getEnvAsInt("REALTIME_CHANNEL_BUFFER_SIZE", 1000),
		},
		Chat: ChatConfig{
			MaxMessageLength: getEnvAsInt("CHAT_MAX_MESSAGE_LENGTH", 4000),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "text"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
	}
}

// Validate checks the settings the server cannot start without.
func (cfg *Config) Validate() error {
	var errs []error

	if cfg.Platform.URL == "" {
		errs = append(errs, errors.New("PLATFORM_URL is required"))
	}
	if cfg.Platform.ServiceKey == "" {
		errs = append(errs, errors.New("PLATFORM_SERVICE_KEY is required"))
	}

	switch cfg.Platform.IdentityMode {
	case IdentityRemote:
	case IdentityJWT:
		if cfg.Platform.JWTSecret == "" {
			errs = append(errs, errors.New("PLATFORM_JWT_SECRET is required when IDENTITY_MODE=jwt"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown IDENTITY_MODE %q", cfg.Platform.IdentityMode))
	}

	switch cfg.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverMongo:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Database.Driver))
	}

	return errors.Join(errs...)
}

// DSN builds the connection string for the relational driver in use.
func (cfg *Config) DSN() string {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}

	if cfg.Database.Driver == DriverPostgres {
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		sslMode := cfg.Database.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Username,
			cfg.Database.Password,
			cfg.Database.DatabaseName,
			sslMode,
		)
	}

	if cfg.Database.Port == "" {
		cfg.Database.Port = "3306"
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DatabaseName,
	)
}

func (cfg *Config) GetMongoURI() string {
	if cfg.MongoDB.Username != "" && cfg.MongoDB.Password != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%s/%s?authSource=admin",
			cfg.MongoDB.Username,
			cfg.MongoDB.Password,
			cfg.MongoDB.Host,
			cfg.MongoDB.Port,
			cfg.MongoDB.Database,
		)
	}
	return fmt.Sprintf("mongodb://%s:%s/%s", cfg.MongoDB.Host, cfg.MongoDB.Port, cfg.MongoDB.Database)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
