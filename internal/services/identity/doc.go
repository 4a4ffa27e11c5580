// Package identity creates and decodes the long-term material of a linked
// device.
//
// A fresh identity is a noise key pair for the transport handshake, an
// identity key (X25519 for agreement, Ed25519 for signing), a 14-bit
// registration id and an advertisement secret. Everything is returned as
// a CredentialDelta so the store persists it in one commit.
package identity
