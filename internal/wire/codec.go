package wire

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
}

// Envelope is the outer frame of every message.
type Envelope struct {
	Type Type            `cbor:"type"`
	Body cbor.RawMessage `cbor:"body,omitempty"`
}

// Encode wraps body in an envelope of type t.
func Encode(t Type, body any) ([]byte, error) {
	env := Envelope{Type: t}
	if body != nil {
		raw, err := encMode.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("wire: encode %s: %w", t, err)
		}
		env.Body = raw
	}
	return encMode.Marshal(env)
}

// Decode parses an envelope. The body is decoded later with Envelope.Into.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("wire: decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("wire: envelope without type")
	}
	return env, nil
}

// Into decodes the envelope body into v.
func (e Envelope) Into(v any) error {
	if len(e.Body) == 0 {
		return fmt.Errorf("wire: %s has no body", e.Type)
	}
	if err := decMode.Unmarshal(e.Body, v); err != nil {
		return fmt.Errorf("wire: decode %s: %w", e.Type, err)
	}
	return nil
}
