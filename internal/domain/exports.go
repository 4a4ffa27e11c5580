package domain

import (
	interfaces "devlink/internal/domain/interfaces"
	types "devlink/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	FragmentName     = types.FragmentName
	Fingerprint      = types.Fingerprint
	AccountID        = types.AccountID
	Credentials      = types.Credentials
	CredentialDelta  = types.CredentialDelta
	PairingChallenge = types.PairingChallenge
	Phase            = types.Phase
	ConnectionState  = types.ConnectionState
	DisconnectKind   = types.DisconnectKind
	DisconnectReason = types.DisconnectReason
	EventKind        = types.EventKind
	Event            = types.Event
	Frame            = types.Frame
	ClientInfo       = types.ClientInfo
	AuthResult       = types.AuthResult
	X25519Public     = types.X25519Public
	X25519Private    = types.X25519Private
	Ed25519Public    = types.Ed25519Public
	Ed25519Private   = types.Ed25519Private
	X25519KeyPair    = types.X25519KeyPair
	IdentityKeys     = types.IdentityKeys
	SignedPreKey     = types.SignedPreKey
	OneTimePreKey    = types.OneTimePreKey
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	CredentialStore = interfaces.CredentialStore
	Transport       = interfaces.Transport
	Connection      = interfaces.Connection
	ChallengeSink   = interfaces.ChallengeSink
	IdentityService = interfaces.IdentityService
	PreKeyService   = interfaces.PreKeyService
	SessionService  = interfaces.SessionService
)

// Re-exported constants.
const (
	FragmentRegistered   = types.FragmentRegistered
	FragmentAccount      = types.FragmentAccount
	FragmentNoiseKey     = types.FragmentNoiseKey
	FragmentIdentityKey  = types.FragmentIdentityKey
	FragmentSignedPreKey = types.FragmentSignedPreKey
	FragmentPreKeys      = types.FragmentPreKeys
	FragmentRegistration = types.FragmentRegistration
	FragmentAdvSecret    = types.FragmentAdvSecret
	FragmentLiveSession  = types.FragmentLiveSession

	PhaseIdle    = types.PhaseIdle
	PhasePairing = types.PhasePairing
	PhaseOpen    = types.PhaseOpen
	PhaseClosing = types.PhaseClosing
	PhaseClosed  = types.PhaseClosed

	DisconnectUnknown          = types.DisconnectUnknown
	DisconnectLoggedOut        = types.DisconnectLoggedOut
	DisconnectTransientNetwork = types.DisconnectTransientNetwork
	DisconnectProtocolConflict = types.DisconnectProtocolConflict

	EventChallenge   = types.EventChallenge
	EventOpened      = types.EventOpened
	EventCredentials = types.EventCredentials
	EventClosed      = types.EventClosed

	AlreadyRegistered = types.AlreadyRegistered
	Paired            = types.Paired
)

// RegisteredDelta marks credentials registered for account.
func RegisteredDelta(account AccountID) CredentialDelta {
	return types.RegisteredDelta(account)
}
