package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// Environment
	Environment string `mapstructure:"ENV"`

	// Server Configuration
	ServerHost string `mapstructure:"SERVER_HOST"`
	ServerPort string `mapstructure:"SERVER_PORT"`

	// Browser origins allowed by CORS
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	Database DatabaseConfig
	Cache    CacheConfig
	Queue    QueueConfig
	LLM      LLMConfig
	Storage  StorageConfig
	Engine   EngineConfig
}

// DatabaseConfig holds PostgreSQL connection and pool settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	LogLevel        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // minutes
	MaxConnIdleTime int // minutes
}

// CacheConfig holds Redis settings for the insight cache
type CacheConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	DialTimeout  int // seconds
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	PoolSize     int
	MinIdleConns int
}

// QueueConfig holds asynq settings
type QueueConfig struct {
	RedisHost      string
	RedisPort      int
	RedisPassword  string
	RedisDB        int
	DialTimeout    int // seconds
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	Concurrency    int
	MaxRetries     int
	StrictPriority bool
}

// LLMConfig configures the OpenAI text and image clients
type LLMConfig struct {
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	TextModel      string
	ImageModel     string
	ImageSize      string
	TimeoutSeconds int
	MaxRetries     int
}

// StorageConfig configures where generated assets are written
type StorageConfig struct {
	BasePath      string
	PublicBaseURL string
}

// EngineConfig tunes the preference engine
type EngineConfig struct {
	AdaptiveWindow      int
	InsightCacheTTL     time.Duration
	BatchMaxItems       int
	BatchConcurrency    int
	ImageTimeoutSeconds int
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found, using environment variables only")
		}
	}

	v := viper.New()
	setDefaults(v)

	// Bind environment variables
	v.AutomaticEnv()

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")

	// Database defaults
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_NAME", "preference_engine")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_LOG_LEVEL", "silent")
	v.SetDefault("DB_MAX_CONNECTIONS", 20)
	v.SetDefault("DB_MIN_CONNECTIONS", 2)
	v.SetDefault("DB_MAX_CONN_LIFETIME_MIN", 30)
	v.SetDefault("DB_MAX_CONN_IDLE_TIME_MIN", 5)

	// Redis defaults
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5)
	v.SetDefault("REDIS_READ_TIMEOUT", 3)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)

	// Worker defaults
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("WORKER_MAX_RETRIES", 3)
	v.SetDefault("WORKER_STRICT_PRIORITY", false)

	// LLM defaults
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_IMAGE_MODEL", "gpt-image-1")
	v.SetDefault("OPENAI_IMAGE_SIZE", "1024x1024")
	v.SetDefault("OPENAI_TIMEOUT_SECONDS", 120)
	v.SetDefault("OPENAI_MAX_RETRIES", 3)

	// Storage defaults
	v.SetDefault("ASSET_DIR", "/tmp/preference-engine")
	v.SetDefault("ASSET_PUBLIC_BASE_URL", "/assets")

	// Engine defaults
	v.SetDefault("ADAPTIVE_WINDOW", 20)
	v.SetDefault("INSIGHT_CACHE_TTL", "10m")
	v.SetDefault("BATCH_MAX_ITEMS", 10)
	v.SetDefault("BATCH_CONCURRENCY", 4)
	v.SetDefault("IMAGE_TIMEOUT_SECONDS", 90)
}

func fromViper(v *viper.Viper) (*Config, error) {
	config := &Config{}

	config.Environment = v.GetString("ENV")
	config.ServerHost = v.GetString("SERVER_HOST")
	config.ServerPort = v.GetString("SERVER_PORT")
	config.CORSAllowedOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"))

	// Database
	config.Database = DatabaseConfig{
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Database:        v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSLMODE"),
		LogLevel:        v.GetString("DB_LOG_LEVEL"),
		MaxConnections:  v.GetInt("DB_MAX_CONNECTIONS"),
		MinConnections:  v.GetInt("DB_MIN_CONNECTIONS"),
		MaxConnLifetime: v.GetInt("DB_MAX_CONN_LIFETIME_MIN"),
		MaxConnIdleTime: v.GetInt("DB_MAX_CONN_IDLE_TIME_MIN"),
	}

	// Redis
	config.Cache = CacheConfig{
		Host:         v.GetString("REDIS_HOST"),
		Port:         v.GetInt("REDIS_PORT"),
		Password:     v.GetString("REDIS_PASSWORD"),
		DB:           v.GetInt("REDIS_DB"),
		DialTimeout:  v.GetInt("REDIS_DIAL_TIMEOUT"),
		ReadTimeout:  v.GetInt("REDIS_READ_TIMEOUT"),
		WriteTimeout: v.GetInt("REDIS_WRITE_TIMEOUT"),
		PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
		MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
	}

	// Worker queue shares the Redis instance
	config.Queue = QueueConfig{
		RedisHost:      config.Cache.Host,
		RedisPort:      config.Cache.Port,
		RedisPassword:  config.Cache.Password,
		RedisDB:        config.Cache.DB,
		DialTimeout:    config.Cache.DialTimeout,
		ReadTimeout:    config.Cache.ReadTimeout,
		WriteTimeout:   config.Cache.WriteTimeout,
		Concurrency:    v.GetInt("WORKER_CONCURRENCY"),
		MaxRetries:     v.GetInt("WORKER_MAX_RETRIES"),
		StrictPriority: v.GetBool("WORKER_STRICT_PRIORITY"),
	}

	// LLM
	config.LLM = LLMConfig{
		OpenAIAPIKey:   v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:  v.GetString("OPENAI_BASE_URL"),
		TextModel:      v.GetString("OPENAI_MODEL"),
		ImageModel:     v.GetString("OPENAI_IMAGE_MODEL"),
		ImageSize:      v.GetString("OPENAI_IMAGE_SIZE"),
		TimeoutSeconds: v.GetInt("OPENAI_TIMEOUT_SECONDS"),
		MaxRetries:     v.GetInt("OPENAI_MAX_RETRIES"),
	}

	// Storage
	config.Storage = StorageConfig{
		BasePath:      v.GetString("ASSET_DIR"),
		PublicBaseURL: v.GetString("ASSET_PUBLIC_BASE_URL"),
	}

	// Engine
	config.Engine = EngineConfig{
		AdaptiveWindow:      v.GetInt("ADAPTIVE_WINDOW"),
		InsightCacheTTL:     v.GetDuration("INSIGHT_CACHE_TTL"),
		BatchMaxItems:       v.GetInt("BATCH_MAX_ITEMS"),
		BatchConcurrency:    v.GetInt("BATCH_CONCURRENCY"),
		ImageTimeoutSeconds: v.GetInt("IMAGE_TIMEOUT_SECONDS"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required fields and sane engine bounds
func (c *Config) Validate() error {
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.LLM.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Engine.AdaptiveWindow <= 0 {
		return fmt.Errorf("ADAPTIVE_WINDOW must be greater than 0")
	}
	if c.Engine.BatchMaxItems <= 0 {
		return fmt.Errorf("BATCH_MAX_ITEMS must be greater than 0")
	}
	if c.Engine.BatchConcurrency <= 0 {
		return fmt.Errorf("BATCH_CONCURRENCY must be greater than 0")
	}
	return nil
}

// GetDatabaseURL constructs the PostgreSQL connection string
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.Database, c.Database.SSLMode)
}

// GetRedisURL constructs the Redis address
func (c *Config) GetRedisURL() string {
	return fmt.Sprintf("%s:%d", c.Cache.Host, c.Cache.Port)
}

// ServerAddr returns host:port for the HTTP listener
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%s", c.ServerHost, c.ServerPort)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// LogConfig logs the configuration (hiding sensitive data)
func (c *Config) LogConfig() {
	log.Printf("Configuration loaded:")
	log.Printf("  Environment: %s", c.Environment)
	log.Printf("  Server: %s:%s", c.ServerHost, c.ServerPort)
	log.Printf("  Database: %s:%d/%s", c.Database.Host, c.Database.Port, c.Database.Database)
	log.Printf("  Redis: %s:%d (DB: %d)", c.Cache.Host, c.Cache.Port, c.Cache.DB)
	log.Printf("  Text Model: %s", c.LLM.TextModel)
	log.Printf("  Image Model: %s (%s)", c.LLM.ImageModel, c.LLM.ImageSize)
	log.Printf("  Adaptive Window: %d", c.Engine.AdaptiveWindow)
	log.Printf("  Batch: max %d items, concurrency %d", c.Engine.BatchMaxItems, c.Engine.BatchConcurrency)
	log.Printf("  Worker Concurrency: %d", c.Queue.Concurrency)

	// Check API keys without revealing them
	if c.LLM.OpenAIAPIKey != "" {
		log.Printf("  OpenAI API Key: [CONFIGURED]")
	} else {
		log.Printf("  OpenAI API Key: [NOT SET]")
	}
}

// splitList parses a comma separated env value, dropping empty items
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
