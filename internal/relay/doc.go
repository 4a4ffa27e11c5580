// Package relay connects a linked device to the remote service over a
// websocket, and provides a development stand-in for that service.
//
// Client implements domain.Transport. It dials <base>/ws, introduces the
// device with a hello message built from the stored credentials, and
// turns the server's messages into the ordered domain.Event stream the
// connection state machine consumes. Pairing challenges are composed
// locally as ref,noise,identity,adv (each key base64) from the server's
// short-lived ref.
//
// Server is the in-memory development relay behind cmd/relay. It issues
// rotating pairing refs, simulates a phone scanning one (POST /pair/{ref}),
// and can log a device out or replace its session to exercise terminal
// disconnects. Admin is the HTTP client for those endpoints.
//
// All payloads on the websocket are CBOR envelopes from internal/wire.
package relay
