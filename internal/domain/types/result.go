package types

// AuthResult is the outcome of a successful authentication.
type AuthResult int

const (
	// AlreadyRegistered means stored credentials were reused without dialing.
	AlreadyRegistered AuthResult = iota + 1
	// Paired means a human completed pairing during this run.
	Paired
)

func (r AuthResult) String() string {
	switch r {
	case AlreadyRegistered:
		return "already-registered"
	case Paired:
		return "paired"
	default:
		return "invalid"
	}
}
