package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server ServerConfig `json:"server"`

	// Message store
	Database DatabaseConfig `json:"database"`

	// Attached media (GridFS)
	MongoDB MongoDBConfig `json:"mongodb"`

	Auth AuthConfig `json:"auth"`

	Media MediaConfig `json:"media"`

	// Live push transport
	Delivery DeliveryConfig `json:"delivery"`

	RateLimit RateLimitConfig `json:"rate_limit"`

	Logging LoggingConfig `json:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host             string `json:"host"`
	ChatServicePort  string `json:"chat_service_port"`
	MediaServicePort string `json:"media_service_port"`
	ReadTimeout      int    `json:"read_timeout"`  // seconds
	WriteTimeout     int    `json:"write_timeout"` // seconds
	Environment      string `json:"environment"`   // development, staging, production
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Driver       string `json:"driver"` // mysql or postgres
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
	Bucket   string `json:"bucket"`
}

type AuthConfig struct {
	JWTSecret string `json:"-"`
}

type MediaConfig struct {
	MaxUploadBytes int64 `json:"max_upload_bytes"`
}

// DeliveryConfig tunes the websocket connections used for live push.
type DeliveryConfig struct {
	SendBufferSize int           `json:"send_buffer_size"`
	PingInterval   time.Duration `json:"ping_interval"`
	PongTimeout    time.Duration `json:"pong_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
}

type RateLimitConfig struct {
	SendRPS   float64 `json:"send_rps"`
	SendBurst int     `json:"send_burst"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `json:"level"` // debug, info, warn, error
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		Server: ServerConfig{
			Host:             getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ChatServicePort:  getEnvOrDefault("CHAT_SERVICE_PORT", "7003"),
			MediaServicePort: getEnvOrDefault("MEDIA_SERVER_PORT", "8080"),
			ReadTimeout:      getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:     getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			Environment:      getEnvOrDefault("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(getEnvOrDefault("DB_DRIVER", "mysql")),
			Host:         getEnvOrDefault("DB_HOST", "localhost"),
			Port:         getEnvOrDefault("DB_PORT", ""),
			Username:     getEnvOrDefault("DB_USER", "gochat"),
			Password:     getEnvOrDefault("DB_PASSWORD", "gochat123"),
			DatabaseName: getEnvOrDefault("DB_NAME", "gochat"),
			SSLMode:      getEnvOrDefault("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		MongoDB: MongoDBConfig{
			Host:     getEnvOrDefault("MONGO_HOST", "localhost"),
			Port:     getEnvOrDefault("MONGO_PORT", "27017"),
			Username: getEnvOrDefault("MONGO_USERNAME", ""),
			Password: getEnvOrDefault("MONGO_PASSWORD", ""),
			Database: getEnvOrDefault("MONGO_DATABASE", "gochat"),
			Bucket:   getEnvOrDefault("MONGO_BUCKET", "media_files"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnvOrDefault("JWT_SECRET", ""),
		},
		Media: MediaConfig{
			MaxUploadBytes: int64(getEnvInt("MEDIA_MAX_UPLOAD_BYTES", 10<<20)),
		},
		Delivery: DeliveryConfig{
			SendBufferSize: getEnvInt("WS_SEND_BUFFER", 256),
			PingInterval:   getEnvDuration("WS_PING_INTERVAL", 10*time.Second),
			PongTimeout:    getEnvDuration("WS_PONG_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDuration("WS_WRITE_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			SendRPS:   getEnvFloat("SEND_RATE_LIMIT_RPS", 5),
			SendBurst: getEnvInt("SEND_RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		},
	}
}

// Validate reports settings the services cannot start without.
func (cfg *Config) Validate() error {
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	switch cfg.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	if cfg.Delivery.PingInterval >= cfg.Delivery.PongTimeout {
		return fmt.Errorf("WS_PING_INTERVAL must be shorter than WS_PONG_TIMEOUT")
	}
	return nil
}

func (cfg *Config) DSN() string {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}

	if cfg.Database.Driver == "postgres" {
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Username,
			cfg.Database.Password,
			cfg.Database.DatabaseName,
			cfg.Database.SSLMode,
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
	m := cfg.MongoDB
	if m.Username != "" && m.Password != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%s/%s?authSource=admin",
			m.Username, m.Password, m.Host, m.Port, m.Database)
	}
	return fmt.Sprintf("mongodb://%s:%s/%s", m.Host, m.Port, m.Database)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid integer for %s: %q, using %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("Invalid number for %s: %q, using %v", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s: %q, using %v", key, value, defaultValue)
	}
	return defaultValue
}
