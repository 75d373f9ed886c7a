package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	NodeEnv   string
	Port      string
	BaseURL   string
	JWTSecret string
	Database  DatabaseConfig
	Storage   StorageConfig
	Drive     DriveConfig
	Log       LogConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// StorageConfig holds blob storage configuration
type StorageConfig struct {
	RootDir       string
	PublicBaseURL string
}

// DriveConfig holds the optional Google Drive mirror configuration.
// The mirror is disabled entirely when credentials are absent.
type DriveConfig struct {
	ServiceAccountEmail string
	PrivateKeyFile      string
	FolderID            string
}

// Enabled reports whether the Drive mirror is configured
func (d DriveConfig) Enabled() bool {
	return d.ServiceAccountEmail != "" && d.PrivateKeyFile != ""
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      getEnv("PORT", "3210"),
		BaseURL:   getEnv("BASE_URL", "http://localhost:3210"),
		JWTSecret: jwtSecret,
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "vistoria"),
		},
		Storage: StorageConfig{
			RootDir:       getEnv("STORAGE_DIR", "./storage_data"),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_URL", "http://localhost:3210/files"),
		},
		Drive: DriveConfig{
			ServiceAccountEmail: os.Getenv("DRIVE_SA_EMAIL"),
			PrivateKeyFile:      os.Getenv("DRIVE_SA_KEY_FILE"),
			FolderID:            os.Getenv("DRIVE_FOLDER_ID"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
