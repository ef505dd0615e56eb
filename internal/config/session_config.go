package config

import "time"

const (
	refreshIntervalVar     = "REFRESH_INTERVAL"
	defaultRefreshInterval = 25 * time.Minute
)

type Session struct{}

var _ SessionConfig = Session{}

// GetRefreshInterval returns how often the session manager proactively
// renews the token pair while authenticated.
func (Session) GetRefreshInterval() time.Duration {
	return durationEnv(refreshIntervalVar, defaultRefreshInterval)
}
