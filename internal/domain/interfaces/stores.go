package interfaces

import domaintypes "devlink/internal/domain/types"

// CredentialStore is the durable home of a device's credentials.
//
// Load never fails: absent or unreadable material is reported as empty
// credentials. ApplyUpdate returns only after the merged result is durable.
type CredentialStore interface {
	Load() domaintypes.Credentials
	ApplyUpdate(delta domaintypes.CredentialDelta) error
	Clear() error
}
