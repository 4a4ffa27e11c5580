// Package session drives the authentication lifecycle of one linked
// device.
//
// Authenticate reuses registered credentials or runs a pairing window:
// it bootstraps fresh identity material, dials, hands challenges to the
// issuer and waits for the session to open. Run keeps a registered
// session open and reconnects after retryable disconnects. A terminal
// disconnect clears the stored credentials in both cases.
package session
