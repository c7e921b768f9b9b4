package config

import "time"

type Config interface {
	EnvConfig
	HandshakeConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetAPIBaseURL() string
	GetAppOrigin() string
	GetStoreDir() string
	GetHTTPTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	Handshake
}

func New() Config {
	return mainConfig{}
}
