package config

import (
	"fmt"
	"os"
)

// SyncConfig holds configuration for the field client's offline sync queue
type SyncConfig struct {
	// Remote target
	ServerURL string `json:"server_url"`
	Token     string `json:"token"` // cached session token

	// Local storage
	QueuePath string `json:"queue_path"` // sqlite database file

	// Scheduling
	DrainInterval  int  `json:"drain_interval"`  // seconds between periodic drains
	HealthInterval int  `json:"health_interval"` // seconds between connectivity probes
	DrainOnStartup bool `json:"drain_on_startup"`

	// Retry policy
	MaxTries int `json:"max_tries"` // attempts before an entry is surfaced as error

	// Cleanup
	DeleteAfterSync bool `json:"delete_after_sync"` // remove local photo files once acknowledged
}

// LoadSyncConfig loads the field client configuration from environment variables
func LoadSyncConfig() (*SyncConfig, error) {
	serverURL := os.Getenv("SYNC_SERVER_URL")
	if serverURL == "" {
		return nil, fmt.Errorf("SYNC_SERVER_URL is required")
	}

	return &SyncConfig{
		ServerURL:       serverURL,
		Token:           os.Getenv("SYNC_TOKEN"),
		QueuePath:       getEnv("SYNC_QUEUE_PATH", "./field_queue.db"),
		DrainInterval:   getIntEnv("SYNC_DRAIN_INTERVAL", 120),
		HealthInterval:  getIntEnv("SYNC_HEALTH_INTERVAL", 30),
		DrainOnStartup:  getBoolEnv("SYNC_DRAIN_ON_STARTUP", true),
		MaxTries:        getIntEnv("SYNC_MAX_TRIES", 5),
		DeleteAfterSync: getBoolEnv("SYNC_DELETE_AFTER_SYNC", false),
	}, nil
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
