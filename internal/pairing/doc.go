// Package pairing turns pairing challenges into something a human can act
// on. The Issuer keeps the single valid challenge and hands it to a
// Renderer; the challenge is consumed once the session opens.
package pairing
