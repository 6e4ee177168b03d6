package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	JWT       JWTConfig
	Game      GameConfig
	Redis     RedisConfig
	WebSocket WebSocketConfig
	Log       LogConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// JWTConfig holds JWT-specific configuration
type JWTConfig struct {
	Secret    string
	ExpiresIn int // seconds
	Required  bool
}

// GameConfig holds live game timings
type GameConfig struct {
	AutoPlayInterval time.Duration
	OperationTimeout time.Duration
}

// RedisConfig holds the optional cross-instance relay settings
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Channel  string
}

// WebSocketConfig holds per-connection limits
type WebSocketConfig struct {
	SendBuffer        int
	MessagesPerSecond float64
	Burst             int
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// TokenTTL returns the JWT lifetime as a duration
func (c JWTConfig) TokenTTL() time.Duration {
	return time.Duration(c.ExpiresIn) * time.Second
}

// Load loads configuration from .env, config files and environment variables
func Load() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyLegacyEnv(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	if c.MongoDB.URI == "" {
		return errors.New("MongoDB.URI is required")
	}
	if c.JWT.Required && c.JWT.Secret == "" {
		return errors.New("JWT.Secret is required when JWT.Required is set")
	}
	if c.Game.AutoPlayInterval <= 0 {
		return errors.New("Game.AutoPlayInterval must be positive")
	}
	if c.Game.OperationTimeout <= 0 {
		return errors.New("Game.OperationTimeout must be positive")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("Redis.Addr is required when Redis.Enabled is set")
	}
	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "4000")
	v.SetDefault("Server.AllowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	v.SetDefault("MongoDB.Database", "tambola")
	v.SetDefault("JWT.Secret", "")
	v.SetDefault("JWT.ExpiresIn", 24*60*60) // 24 hours
	v.SetDefault("JWT.Required", false)
	v.SetDefault("Game.AutoPlayInterval", 3*time.Second)
	v.SetDefault("Game.OperationTimeout", 5*time.Second)
	v.SetDefault("Redis.Enabled", false)
	v.SetDefault("Redis.Addr", "localhost:6379")
	v.SetDefault("Redis.Password", "")
	v.SetDefault("Redis.DB", 0)
	v.SetDefault("Redis.Channel", "tambola:events")
	v.SetDefault("WebSocket.SendBuffer", 256)
	v.SetDefault("WebSocket.MessagesPerSecond", 10.0)
	v.SetDefault("WebSocket.Burst", 20)
	v.SetDefault("Log.Level", "info")
	v.SetDefault("Log.Format", "json")
	v.SetDefault("Log.File", "")
}
