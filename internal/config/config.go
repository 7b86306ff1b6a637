package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	defaultAppPort        = "8080"
	defaultGatewayTimeout = 2 * time.Second
)

type Config struct {
	DBHost         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBPort         string
	AppPort        string
	AppEnv         string
	AppStore       string
	JWTSecret      string
	RabbitMQURL    string
	GatewayTimeout time.Duration
	// FixturePath is a JSON file loaded into the memory store at boot.
	FixturePath string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:         os.Getenv("DB_HOST"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),
		DBPort:         os.Getenv("DB_PORT"),
		AppPort:        os.Getenv("APP_PORT"),
		AppEnv:         os.Getenv("APP_ENV"),
		AppStore:       os.Getenv("APP_STORE"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
		GatewayTimeout: parseDuration(os.Getenv("GATEWAY_TIMEOUT"), defaultGatewayTimeout),
		FixturePath:    os.Getenv("MEMSTORE_FIXTURE"),
	}

	if cfg.AppPort == "" {
		cfg.AppPort = defaultAppPort
	}
	if cfg.AppStore == "" {
		cfg.AppStore = StorePostgres
	}

	if cfg.AppStore == StorePostgres && cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

// parseDuration falls back to def on empty or malformed input.
func parseDuration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
