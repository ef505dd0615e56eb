package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestGetAPIBaseURL_StripsTrailingSlash(t *testing.T) {
	t.Setenv("API_URL", "https://api.example.com/")
	require.Equal(t, "https://api.example.com", config.New().GetAPIBaseURL())
}

func TestGetAPIBaseURL_Default(t *testing.T) {
	t.Setenv("API_URL", "")
	require.Equal(t, "http://localhost:8000", config.New().GetAPIBaseURL())
}

func TestGetRequestTimeout(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "30s")
	require.Equal(t, 30*time.Second, config.New().GetRequestTimeout())

	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")
	require.Equal(t, 10*time.Second, config.New().GetRequestTimeout())
}

func TestGetMaxRetries(t *testing.T) {
	t.Setenv("MAX_RETRIES", "5")
	require.Equal(t, 5, config.New().GetMaxRetries())

	t.Setenv("MAX_RETRIES", "-1")
	require.Equal(t, 2, config.New().GetMaxRetries())
}

func TestGetRefreshInterval_Default(t *testing.T) {
	t.Setenv("REFRESH_INTERVAL", "")
	require.Equal(t, 25*time.Minute, config.New().GetRefreshInterval())
}
