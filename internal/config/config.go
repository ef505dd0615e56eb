package config

import "time"

type Config interface {
	EnvConfig
	ClientConfig
	SessionConfig
}

type EnvConfig interface {
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
}

type ClientConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
	GetMaxRetries() int
}

type SessionConfig interface {
	GetRefreshInterval() time.Duration
}

type mainConfig struct {
	EnvVars
	APIClient
	Session
}

func New() Config {
	return mainConfig{}
}
