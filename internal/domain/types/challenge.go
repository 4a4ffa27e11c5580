package types

import "time"

// PairingChallenge is a short-lived token the remote service issues to
// authorise linking this device. It is rendered for a human to scan and
// is never persisted.
type PairingChallenge struct {
	Payload  string
	IssuedAt time.Time
	TTL      time.Duration
}

// ExpiresAt returns the instant the challenge stops being valid.
func (c PairingChallenge) ExpiresAt() time.Time {
	return c.IssuedAt.Add(c.TTL)
}

// Valid reports whether the challenge can still be consumed at now.
// A zero TTL never expires.
func (c PairingChallenge) Valid(now time.Time) bool {
	if c.Payload == "" {
		return false
	}
	if c.TTL <= 0 {
		return true
	}
	return now.Before(c.ExpiresAt())
}
