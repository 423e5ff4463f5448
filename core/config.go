package core

import "time"

const (
	DefaultExpiryBuffer     = 5 * time.Minute
	DefaultWatchdogInterval = 60 * time.Second
	DefaultNearExpiry       = 30 * time.Minute

	CommunitySessionHours = 24
	SystemSessionHours    = 8
)

// SessionConfig is what distinguishes the community and system session
// services: endpoint prefix, session duration and storage namespace.
type SessionConfig struct {
	Class          IdentityClass
	EndpointPrefix string
	DurationHours  int
	ExpiryBuffer   time.Duration
}

// Duration returns the session length as a time.Duration
func (c SessionConfig) Duration() time.Duration {
	return time.Duration(c.DurationHours) * time.Hour
}

func CommunitySessionConfig() SessionConfig {
	return SessionConfig{
		Class:          ClassCommunity,
		EndpointPrefix: "/auth",
		DurationHours:  CommunitySessionHours,
		ExpiryBuffer:   DefaultExpiryBuffer,
	}
}

func SystemSessionConfig() SessionConfig {
	return SessionConfig{
		Class:          ClassSystem,
		EndpointPrefix: "/system/auth",
		DurationHours:  SystemSessionHours,
		ExpiryBuffer:   DefaultExpiryBuffer,
	}
}

// SessionConfigFor returns the default configuration for class.
func SessionConfigFor(class IdentityClass) SessionConfig {
	if class == ClassSystem {
		return SystemSessionConfig()
	}
	return CommunitySessionConfig()
}

// WatchdogConfig configures the orchestrator's expiry watchdog and the
// notifier's warning threshold.
type WatchdogConfig struct {
	Interval   time.Duration
	NearExpiry time.Duration
}

func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		Interval:   DefaultWatchdogInterval,
		NearExpiry: DefaultNearExpiry,
	}
}
