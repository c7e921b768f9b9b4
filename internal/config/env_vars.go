package config

import (
	"os"
	"strconv"
	"time"
)

const (
	apiBaseURLVar = "API_BASE_URL"
	appNameVar    = "APP_NAME"
	appOriginVar  = "APP_ORIGIN"
	storeDirVar   = "STORE_DIR"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "V-League Auth")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetAPIBaseURL returns the base URL of the platform backend, including the
// API prefix (e.g. "https://api.vleague.example/api").
func (EnvVars) GetAPIBaseURL() string {
	return GetEnv(apiBaseURLVar, "http://localhost:8080/api")
}

// GetAppOrigin returns the origin the browser application is served from.
// The dev backend allows it in CORS.
func (EnvVars) GetAppOrigin() string {
	return GetEnv(appOriginVar, "http://localhost:3000")
}

func (EnvVars) GetStoreDir() string {
	return GetEnv(storeDirVar, "./data")
}

func (EnvVars) GetHTTPTimeout() time.Duration {
	seconds, err := strconv.Atoi(GetEnv("HTTP_TIMEOUT_SECONDS", "30"))
	if err != nil || seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
