// Package crypto exposes the key primitives a linked device needs.
//
// Contents
//
//   - X25519 key generation with RFC 7748 clamping (GenerateX25519)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - Random registration ids and secrets (RegistrationID, RandomBytes)
//   - Short public-key fingerprints for display and logging (Fingerprint)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//
// # Notes
//
// Keys are returned as the fixed-size array types defined in
// internal/domain. Callers should treat returned secrets as sensitive and
// Wipe them when practical.
package crypto
