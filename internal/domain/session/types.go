package session

// Package session contains domain-level types for credentials, claims, and
// session state. It is pure and free of framework/adapter concerns.

import "time"

// Status represents the lifecycle state of the process-wide session.
// Keep string form for easy logging and comparison in tests.
// Valid values are defined as constants below.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusInitializing  Status = "initializing"
	StatusValid         Status = "valid"
	StatusInvalid       Status = "invalid"
	StatusExpired       Status = "expired"
)

// Credential represents the authenticated principal returned by the identity
// provider. It is an opaque handle: adapters construct it, nothing else does.
type Credential struct {
	UserID      string // stable user identifier from the provider (e.g., sub)
	Email       string
	DisplayName string
}

// Claims is a snapshot of authorization attributes bound to a credential at a
// point in time. A new fetch produces a new snapshot; instances are never
// mutated after creation.
type Claims struct {
	IsAdmin   bool
	Email     string
	Role      string // optional, empty when the provider does not set one
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// State is the session manager's owned aggregate. The manager is the only
// mutator; everyone else gets copies via reads.
type State struct {
	Credential      *Credential
	Claims          *Claims
	Status          Status
	LastValidatedAt time.Time
}

// IsAuthenticated reports whether the state carries a validated credential.
func (s State) IsAuthenticated() bool {
	return s.Status == StatusValid && s.Credential != nil
}
