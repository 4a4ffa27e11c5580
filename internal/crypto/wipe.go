package crypto

import "crypto/subtle"

// Wipe zeroes every buffer. Use it on decoded private keys and
// passphrase bytes once they are no longer needed.
func Wipe(bufs ...[]byte) {
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		subtle.XORBytes(b, b, b)
	}
}
