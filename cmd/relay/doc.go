// Package main runs the in-memory development relay devlink pairs and
// connects against, and drives it from the command line.
//
// Commands
//
//	relay serve [--addr :8080]
//	    Serve the device websocket and the admin endpoints until SIGINT.
//
//	relay pair <ref|payload>
//	    Approve a pairing challenge, as a phone scanning it would.
//
//	relay logout <account>
//	    Unlink an account. Its live session closes with status 401.
//
//	relay replace <account>
//	    Replace an account's live session. It closes with status 440.
//
//	relay accounts
//	    List paired accounts.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Each connection gets up to --max-refs pairing refs; the first lives
//     --first-ttl, later ones --next-ttl. Then the connection closes with 408.
//   - After a successful pairing the connection closes with 515 (restart
//     required) unless --restart-after-pair=false.
//   - Every request is access-logged through zerolog.
package main
