// Package connection owns the state of the single logical connection to
// the remote service.
//
// Machine consumes a transport's ordered event stream and applies the
// transition table
//
//	Idle    --start-->           Pairing
//	Pairing --challengeIssued--> Pairing
//	Pairing --credentialDelta--> Pairing
//	Pairing --opened-->          Open
//	Open    --credentialDelta--> Open
//	Pairing|Open --close-->      Closing
//	Pairing|Open|Closing --closed(reason)--> Closed(reason)
//	Closed  --reset-->           Idle
//
// Any other transition fails with domain.ErrInvalidTransition. Classify
// maps a transport close to a DisconnectReason and Backoff paces
// reconnect attempts.
package connection
