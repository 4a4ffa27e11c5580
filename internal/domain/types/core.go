package types

// FragmentName names one credential fragment in the store.
type FragmentName string

// String returns the string form of the fragment name.
func (n FragmentName) String() string { return string(n) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// AccountID identifies the remote account a device is linked to.
type AccountID string

// String returns the string form of the account identifier.
func (id AccountID) String() string { return string(id) }

// Well-known credential fragments.
const (
	// FragmentRegistered is the registration marker. Its presence means
	// pairing completed and the credentials can open a session directly.
	FragmentRegistered FragmentName = "registered"
	// FragmentAccount holds the AccountID assigned at pair-success.
	FragmentAccount      FragmentName = "account"
	FragmentNoiseKey     FragmentName = "noise-key"
	FragmentIdentityKey  FragmentName = "identity-key"
	FragmentSignedPreKey FragmentName = "signed-pre-key"
	FragmentPreKeys      FragmentName = "pre-keys"
	FragmentRegistration FragmentName = "registration-id"
	FragmentAdvSecret    FragmentName = "adv-secret"
	// FragmentLiveSession is set while a session is open and removed once
	// its close is observed. Finding it at start means the last run was
	// killed with the connection still up.
	FragmentLiveSession FragmentName = "live-session"
)
