package crypto

import (
	"encoding/base64"
	"strings"
)

// B64 encodes key material for the challenge payload and the hello frame:
// standard alphabet, padded.
func B64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// FromB64 reverses B64. Unpadded input, as some scanners hand back, is
// accepted too.
func FromB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
