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

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration of the API service
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Mongo     MongoConfig     `json:"mongo"`
	Weather   WeatherConfig   `json:"weather"`
	Predictor PredictorConfig `json:"predictor"`
	Import    ImportConfig    `json:"import"`
	Logging   LoggingConfig   `json:"logging"`
	CORS      CORSConfig      `json:"cors"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig holds database-related configuration.
// Driver selects between a PostgreSQL server and a local SQLite file.
type DatabaseConfig struct {
	Driver     string `json:"driver"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Password   string `json:"password"`
	DBName     string `json:"db_name"`
	SSLMode    string `json:"ssl_mode"`
	MaxConns   int    `json:"max_conns"`
	MinConns   int    `json:"min_conns"`
	SQLitePath string `json:"sqlite_path"`
}

// MongoConfig holds the weather snapshot cache configuration. An empty URI disables the cache.
type MongoConfig struct {
	URI               string        `json:"uri"`
	DBName            string        `json:"db_name"`
	WeatherCollection string        `json:"weather_collection"`
	CacheTTL          time.Duration `json:"cache_ttl"`
	ConnectTimeout    time.Duration `json:"connect_timeout"`
}

// WeatherConfig holds Open-Meteo settings
type WeatherConfig struct {
	BaseURL    string        `json:"base_url"`
	Latitude   float64       `json:"latitude"`
	Longitude  float64       `json:"longitude"`
	Timezone   string        `json:"timezone"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`
}

// PredictorConfig holds the relay-status model settings
type PredictorConfig struct {
	Seed            int64   `json:"seed"`
	TestFraction    float64 `json:"test_fraction"`
	MinRows         int     `json:"min_rows"`
	Trees           int     `json:"trees"`
	MaxDepth        int     `json:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split"`
	SyntheticMin    float64 `json:"synthetic_min"`
	SyntheticMax    float64 `json:"synthetic_max"`
	// ForecastSeed seeds the synthetic sensor values when a request carries no
	// seed of its own; 0 leaves them unseeded.
	ForecastSeed int64 `json:"forecast_seed"`
}

// ImportConfig holds spreadsheet upload settings
type ImportConfig struct {
	MaxUploadBytes int64  `json:"max_upload_bytes"`
	SheetName      string `json:"sheet_name"`
	PreviewRows    int    `json:"preview_rows"`
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"broker_pass"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	Topic       string        `json:"topic"`
	ClientID    string        `json:"client_id"`
	SharedGroup string        `json:"shared_group"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout or stderr
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// BatchConfig holds batch processing configuration
type BatchConfig struct {
	Size   int           `json:"size"`
	Window time.Duration `json:"window"`
}

// IngestorConfig holds configuration for the MQTT Ingestor service
type IngestorConfig struct {
	Server        ServerConfig  `json:"server"`
	MQTT          MQTTConfig    `json:"mqtt"`
	Batch         BatchConfig   `json:"batch"`
	Logging       LoggingConfig `json:"logging"`
	ApiServiceURL string        `json:"api_service_url"`
	ApiMaxRetries int           `json:"api_max_retries"`
	ApiRetryDelay time.Duration `json:"api_retry_delay"`
}

// LoadIngestorConfig loads configuration for the MQTT Ingestor service
func LoadIngestorConfig() (*IngestorConfig, error) {
	// A missing .env file is fine, variables may be set directly
	_ = godotenv.Load()

	config := &IngestorConfig{
		Server: ServerConfig{
			Port:         getEnv("INGESTOR_PORT", "9003"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		MQTT: MQTTConfig{
			BrokerHost:  getEnv("BROKER_HOST", "localhost"),
			BrokerPort:  getInt("BROKER_PORT", 1883),
			BrokerUser:  getEnv("BROKER_USER", ""),
			BrokerPass:  getEnv("BROKER_PASS", ""),
			UseTLS:      getBool("BROKER_TLS", false),
			CACertPath:  getEnv("BROKER_CA_FILE", ""),
			Topic:       getEnv("MQTT_TOPIC", "irrigation/sensors/+"),
			ClientID:    getEnv("MQTT_CLIENT_ID", "irrigation-ingestor"),
			SharedGroup: getEnv("MQTT_SHARED_GROUP", ""),
			KeepAlive:   getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout: getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
		},
		Batch: BatchConfig{
			Size:   getInt("BATCH_SIZE", 200),
			Window: getDuration("BATCH_WINDOW", 1*time.Second),
		},
		Logging:       loadLogging(),
		ApiServiceURL: getEnv("API_SERVICE_URL", "http://localhost:9002"),
		ApiMaxRetries: getInt("API_MAX_RETRIES", 3),
		ApiRetryDelay: getDuration("API_RETRY_DELAY", 1*time.Second),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadApiConfig loads configuration for the API service
func LoadApiConfig() (*Config, error) {
	// A missing .env file is fine, variables may be set directly
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "9002"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			Host:       getEnv("POSTGRES_HOST", "localhost"),
			Port:       getInt("POSTGRES_PORT", 5432),
			User:       getEnv("POSTGRES_USER", ""),
			Password:   getEnv("POSTGRES_PASSWORD", ""),
			DBName:     getEnv("POSTGRES_DB", "irrigation"),
			SSLMode:    getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns:   getInt("POSTGRES_MAX_CONNS", 10),
			MinConns:   getInt("POSTGRES_MIN_CONNS", 2),
			SQLitePath: getEnv("SQLITE_PATH", "irrigation.sqlite"),
		},
		Mongo: MongoConfig{
			URI:               getEnv("MONGODB_URI", ""),
			DBName:            getEnv("MONGODB_DB", "irrigation"),
			WeatherCollection: getEnv("MONGODB_WEATHER_COLLECTION", "weather_snapshots"),
			CacheTTL:          getDuration("WEATHER_CACHE_TTL", 30*time.Minute),
			ConnectTimeout:    getDuration("MONGODB_CONNECT_TIMEOUT", 20*time.Second),
		},
		Weather: WeatherConfig{
			BaseURL:    getEnv("WEATHER_BASE_URL", "https://api.open-meteo.com"),
			Latitude:   getFloat("WEATHER_LATITUDE", -23.5505),
			Longitude:  getFloat("WEATHER_LONGITUDE", -46.6333),
			Timezone:   getEnv("WEATHER_TIMEZONE", "America/Sao_Paulo"),
			Timeout:    getDuration("WEATHER_TIMEOUT", 15*time.Second),
			MaxRetries: getInt("WEATHER_MAX_RETRIES", 2),
			RetryDelay: getDuration("WEATHER_RETRY_DELAY", 500*time.Millisecond),
		},
		Predictor: PredictorConfig{
			Seed:            getInt64("PREDICTOR_SEED", 42),
			TestFraction:    getFloat("PREDICTOR_TEST_FRACTION", 0.2),
			MinRows:         getInt("PREDICTOR_MIN_ROWS", 10),
			Trees:           getInt("PREDICTOR_TREES", 100),
			MaxDepth:        getInt("PREDICTOR_MAX_DEPTH", 0),
			MinSamplesSplit: getInt("PREDICTOR_MIN_SAMPLES_SPLIT", 2),
			SyntheticMin:    getFloat("FORECAST_VALUE_MIN", 10),
			SyntheticMax:    getFloat("FORECAST_VALUE_MAX", 50),
			ForecastSeed:    getInt64("FORECAST_SEED", 0),
		},
		Import: ImportConfig{
			MaxUploadBytes: getInt64("IMPORT_MAX_UPLOAD_BYTES", 10<<20),
			SheetName:      getEnv("IMPORT_SHEET_NAME", ""),
			PreviewRows:    getInt("IMPORT_PREVIEW_ROWS", 5),
		},
		Logging: loadLogging(),
		CORS: CORSConfig{
			AllowedOrigins:   getStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "X-Request-ID"}),
			ExposedHeaders:   getStringSlice("CORS_EXPOSED_HEADERS", []string{"Content-Length", "X-Request-ID"}),
			AllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getInt("CORS_MAX_AGE", 43200), // 12 hours
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadLogging() LoggingConfig {
	return LoggingConfig{
		Level:        getEnv("LOG_LEVEL", "info"),
		Format:       getEnv("LOG_FORMAT", "text"),
		Output:       getEnv("LOG_OUTPUT", "stdout"),
		EnableCaller: getBool("LOG_ENABLE_CALLER", false),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.User == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("POSTGRES_PASSWORD is required")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (expected %s or %s)", c.Database.Driver, DriverPostgres, DriverSQLite)
	}

	p := c.Predictor
	if p.TestFraction <= 0 || p.TestFraction >= 1 {
		return fmt.Errorf("PREDICTOR_TEST_FRACTION must be between 0 and 1, got %v", p.TestFraction)
	}
	if p.MinRows < 2 {
		return fmt.Errorf("PREDICTOR_MIN_ROWS must be at least 2")
	}
	if p.Trees < 1 {
		return fmt.Errorf("PREDICTOR_TREES must be positive")
	}
	if p.MinSamplesSplit < 2 {
		return fmt.Errorf("PREDICTOR_MIN_SAMPLES_SPLIT must be at least 2")
	}
	if p.SyntheticMin >= p.SyntheticMax {
		return fmt.Errorf("FORECAST_VALUE_MIN must be lower than FORECAST_VALUE_MAX")
	}
	if c.Weather.BaseURL == "" {
		return fmt.Errorf("WEATHER_BASE_URL is required")
	}
	if c.Import.MaxUploadBytes <= 0 {
		return fmt.Errorf("IMPORT_MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// Validate validates the ingestor configuration
func (c *IngestorConfig) Validate() error {
	if c.ApiServiceURL == "" {
		return fmt.Errorf("API_SERVICE_URL is required")
	}
	if c.MQTT.BrokerHost == "" {
		return fmt.Errorf("BROKER_HOST is required")
	}
	if c.Batch.Size < 1 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}
	if c.Batch.Window <= 0 {
		return fmt.Errorf("BATCH_WINDOW must be positive")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetMQTTBrokerURL returns the MQTT broker URL
func (c *IngestorConfig) GetMQTTBrokerURL() string {
	scheme := "tcp"
	if c.MQTT.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.BrokerHost, c.MQTT.BrokerPort)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return intValue
}

func getInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return intValue
}

func getFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return f
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "1" || value == "true" || value == "TRUE" {
		return true
	}
	if value == "0" || value == "false" || value == "FALSE" {
		return false
	}
	log.Fatalf("invalid %s: %q (expected true/false or 1/0)", key, value)
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return duration
}

func getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
