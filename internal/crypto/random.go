package crypto

import (
	"crypto/rand"
	"encoding/binary"
)

// RegistrationIDMask keeps registration ids within 14 bits.
const RegistrationIDMask = 0x3fff

// RandomBytes returns n bytes from the system CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RegistrationID returns a random non-zero 14-bit registration id.
func RegistrationID() (uint16, error) {
	var b [2]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return 0, err
		}
		if id := binary.BigEndian.Uint16(b[:]) & RegistrationIDMask; id != 0 {
			return id, nil
		}
	}
}
