// Package wire defines the messages exchanged between a linked device and
// the relay, and their CBOR encoding.
//
// Every websocket binary message is one Envelope: a type tag and a CBOR
// body. Encoding uses Core Deterministic Encoding so identical messages
// produce identical bytes.
//
// The remote service reports session outcomes as status codes (401 logged
// out, 440 replaced, 515 restart required, ...). Websocket close frames
// cannot carry codes below 1000, so they travel as 4000+status; see
// CloseCode and StatusFromCloseCode.
package wire
