package config

import "time"

type Config interface {
	EnvConfig
}

type EnvConfig interface {
	GetAppName() string
	GetAPIBaseURL() string
	GetRealtimeURL() string
	GetDataFolder() string
	GetKeepAliveInterval() time.Duration
	GetPollInterval() time.Duration
	GetEnv() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
