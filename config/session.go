package config

import "time"

// SessionConfig contains session lifecycle configuration.
type SessionConfig struct {
	// InitTimeout bounds the provider readiness check during initialization.
	InitTimeout time.Duration `env:"SESSION_INIT_TIMEOUT" envDefault:"10s"`

	// InitRetries is the number of readiness attempts for transient
	// provider-unavailable errors. Authentication failures are never retried.
	InitRetries int `env:"SESSION_INIT_RETRIES" envDefault:"3"`

	// InitRetryBackoff is the fixed delay between readiness attempts.
	InitRetryBackoff time.Duration `env:"SESSION_INIT_RETRY_BACKOFF" envDefault:"1s"`

	// RevalidateInterval is the period of the background claims re-check while
	// a session is valid.
	RevalidateInterval time.Duration `env:"SESSION_REVALIDATE_INTERVAL" envDefault:"5m"`

	// RevalidateFailureTolerance is the number of consecutive failed
	// background checks tolerated before signing out. 1 means the first
	// failure signs out.
	RevalidateFailureTolerance int `env:"SESSION_REVALIDATE_FAILURE_TOLERANCE" envDefault:"1"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.InitTimeout <= 0 {
		s.InitTimeout = 10 * time.Second
	}
	if s.InitRetries < 1 {
		s.InitRetries = 1
	}
	if s.InitRetryBackoff < 0 {
		s.InitRetryBackoff = 0
	}
	if s.RevalidateInterval < time.Second {
		s.RevalidateInterval = 5 * time.Minute
	}
	if s.RevalidateFailureTolerance < 1 {
		s.RevalidateFailureTolerance = 1
	}
}
