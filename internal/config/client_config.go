package config

import (
	"strconv"
	"strings"
	"time"
)

const (
	apiURLVar         = "API_URL"
	requestTimeoutVar = "REQUEST_TIMEOUT"
	maxRetriesVar     = "MAX_RETRIES"

	defaultAPIBaseURL     = "http://localhost:8000"
	defaultRequestTimeout = 10 * time.Second
	defaultMaxRetries     = 2
)

type APIClient struct{}

var _ ClientConfig = APIClient{}

// GetAPIBaseURL returns the backend base URL with any trailing slash removed.
func (APIClient) GetAPIBaseURL() string {
	url := GetEnvTrimmed(apiURLVar, defaultAPIBaseURL)
	return strings.TrimRight(url, "/")
}

func (APIClient) GetRequestTimeout() time.Duration {
	return durationEnv(requestTimeoutVar, defaultRequestTimeout)
}

func (APIClient) GetMaxRetries() int {
	raw := GetEnv(maxRetriesVar, "")
	if raw == "" {
		return defaultMaxRetries
	}
	retries, err := strconv.Atoi(raw)
	if err != nil || retries < 0 {
		return defaultMaxRetries
	}
	return retries
}

func durationEnv(envVar string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
