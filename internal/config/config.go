package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	CORS       CORSConfig       `yaml:"cors"`  // CORS configuration
	Admin      AdminConfig      `yaml:"admin"` // /metrics access control
	Auth       AuthConfig       `yaml:"auth"`
	WatchTower WatchTowerConfig `yaml:"watchTower"`
	Orders     OrdersConfig     `yaml:"orders"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig Database configuration. Driver is "postgres" or "memory".
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig NATS event bus configuration
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`        // seconds
	ReconnectWait int    `yaml:"reconnect_wait"` // seconds
	MaxReconnects int    `yaml:"max_reconnects"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`   // List of allowed origins
	AllowCredentials bool     `yaml:"allowCredentials"` // Whether to allow credentials
	MaxAge           int      `yaml:"maxAge"`           // Max age for preflight requests (seconds)
}

// AdminConfig Admin access control configuration
type AdminConfig struct {
	AllowedIPs []string `yaml:"allowedIPs"` // List of allowed IP addresses or CIDR ranges
}

// AuthConfig session token configuration
type AuthConfig struct {
	JWTSecret     string `yaml:"jwtSecret"`
	TokenTTLHours int    `yaml:"tokenTTLHours"`
}

// WatchTowerConfig shared secret of the trusted on-chain observer
type WatchTowerConfig struct {
	Secret            string `yaml:"secret"`
	TimestampWindowMs int64  `yaml:"timestampWindowMs"`
}

// OrdersConfig order admission and maintenance limits
type OrdersConfig struct {
	MaxBotLevels              int `yaml:"maxBotLevels"`
	AccountTimestampWindowSec int `yaml:"accountTimestampWindowSec"`
	SweepIntervalSec          int `yaml:"sweepIntervalSec"`
}

var AppConfig *Config

// LoadConfig Load configuration file
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return err
	}
	fmt.Printf("[%s] Loading configuration from config file: %s\n", time.Now().Format("2006-01-02 15:04:05"), configPath)

	// .env is optional; values already present in the environment win
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}
	overrideFromEnv(config)

	if len(config.Admin.AllowedIPs) > 0 {
		fmt.Printf("[Config] Admin IP whitelist loaded: %d IPs/CIDRs configured\n", len(config.Admin.AllowedIPs))
	} else {
		fmt.Printf("[Config] Admin IP whitelist: not configured (localhost-only mode)\n")
	}
	if len(config.CORS.AllowedOrigins) > 0 {
		fmt.Printf("[Config] CORS allowed origins loaded: %d origins configured\n", len(config.CORS.AllowedOrigins))
	} else {
		fmt.Printf("[Config] CORS: not configured (will allow all origins *)\n")
	}
	if config.WatchTower.Secret == "" {
		fmt.Printf("[Config] watchTower.secret is empty, watch-tower endpoints will reject every request\n")
	}

	AppConfig = config
	return nil
}

// Parse decodes yaml and fills defaults without touching the environment.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	applyDefaults(&config)
	return &config, nil
}

// Default returns a configuration usable without any file, backed by memory storage.
func Default() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

// FromEnv returns the defaults overridden by .env and the process environment.
func FromEnv() *Config {
	config := Default()
	_ = godotenv.Load()
	overrideFromEnv(config)
	if config.Database.DSN != "" && os.Getenv("DATABASE_DRIVER") == "" {
		config.Database.Driver = "postgres"
	}
	return config
}

func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8000
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "postgres"
		if config.Database.DSN == "" {
			config.Database.Driver = "memory"
		}
	}
	if config.NATS.Timeout == 0 {
		config.NATS.Timeout = 5
	}
	if config.NATS.ReconnectWait == 0 {
		config.NATS.ReconnectWait = 2
	}
	if config.NATS.MaxReconnects == 0 {
		config.NATS.MaxReconnects = -1
	}
	if config.NATS.SubjectPrefix == "" {
		config.NATS.SubjectPrefix = "dex"
	}
	if config.Auth.TokenTTLHours == 0 {
		config.Auth.TokenTTLHours = 24
	}
	if config.WatchTower.TimestampWindowMs == 0 {
		config.WatchTower.TimestampWindowMs = 10000
	}
	if config.Orders.MaxBotLevels <= 0 {
		config.Orders.MaxBotLevels = 1000
	}
	if config.Orders.AccountTimestampWindowSec == 0 {
		config.Orders.AccountTimestampWindowSec = 120
	}
	if config.Orders.SweepIntervalSec == 0 {
		config.Orders.SweepIntervalSec = 60
	}
}

// overrideFromEnv Override configuration from environment variables
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
		config.NATS.Enabled = true
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if secret := os.Getenv("WATCH_TOWER_SECRET"); secret != "" {
		config.WatchTower.Secret = secret
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}
}

// TokenTTL returns the session token lifetime
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

// TimestampWindow returns the accepted watch-tower clock skew
func (c *Config) TimestampWindow() time.Duration {
	return time.Duration(c.WatchTower.TimestampWindowMs) * time.Millisecond
}

// AccountWindow returns the accepted skew of signed account messages
func (c *Config) AccountWindow() time.Duration {
	return time.Duration(c.Orders.AccountTimestampWindowSec) * time.Second
}

// SweepInterval returns the expired-maker sweep period
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Orders.SweepIntervalSec) * time.Second
}

// Addr returns host:port for the HTTP listener
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
