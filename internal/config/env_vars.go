package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	appNameVar   = "APP_NAME"
	apiURLVar    = "ARENA_API_URL"
	wsURLVar     = "ARENA_WS_URL"
	folderEnvVar = "ARENA_DATA_FOLDER"
	keepAliveVar = "ARENA_KEEPALIVE"
	pollVar      = "ARENA_POLL_INTERVAL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Arena Client")
}

// GetAPIBaseURL returns the REST API root (e.g. "https://api.arena.example/api").
func (EnvVars) GetAPIBaseURL() string {
	return GetEnv(apiURLVar, "http://localhost:8080/api")
}

// GetRealtimeURL returns the websocket endpoint for the push channel.
func (EnvVars) GetRealtimeURL() string {
	return GetEnv(wsURLVar, "ws://localhost:8080/ws")
}

// GetDataFolder returns the directory holding the persisted token file.
func (EnvVars) GetDataFolder() string {
	if v := os.Getenv(folderEnvVar); v != "" {
		return v
	}
	home, err := os.UserConfigDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, "arena")
}

func (EnvVars) GetKeepAliveInterval() time.Duration {
	return getDuration(keepAliveVar, 4*time.Minute)
}

func (EnvVars) GetPollInterval() time.Duration {
	return getDuration(pollVar, 10*time.Second)
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
