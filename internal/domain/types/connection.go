package types

// Phase is the coarse state of the single logical connection.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePairing
	PhaseOpen
	PhaseClosing
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePairing:
		return "pairing"
	case PhaseOpen:
		return "open"
	case PhaseClosing:
		return "closing"
	case PhaseClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// ConnectionState is the single source of truth for whether it is safe to
// send. Reason is only meaningful in PhaseClosed.
type ConnectionState struct {
	Phase  Phase
	Reason DisconnectReason
}

// Live reports whether the connection is Pairing or Open.
func (s ConnectionState) Live() bool {
	return s.Phase == PhasePairing || s.Phase == PhaseOpen
}

func (s ConnectionState) String() string {
	if s.Phase == PhaseClosed {
		return "closed(" + s.Reason.String() + ")"
	}
	return s.Phase.String()
}
