package interfaces

import (
	"context"

	domaintypes "devlink/internal/domain/types"
)

// IdentityService creates and inspects the long-term device identity.
type IdentityService interface {
	// GenerateIdentity returns a delta holding fresh noise, identity,
	// registration and advertisement material.
	GenerateIdentity() (domaintypes.CredentialDelta, domaintypes.Fingerprint, error)
	LoadIdentity(creds domaintypes.Credentials) (domaintypes.IdentityKeys, error)
	FingerprintIdentity(creds domaintypes.Credentials) (domaintypes.Fingerprint, error)
}

// PreKeyService generates signed and one-time pre-keys.
type PreKeyService interface {
	GeneratePreKeys(id domaintypes.IdentityKeys, count int) (domaintypes.CredentialDelta, error)
}

// SessionService drives the authentication lifecycle of one device.
type SessionService interface {
	Authenticate(ctx context.Context) (domaintypes.AuthResult, error)
	Run(ctx context.Context) error
}
