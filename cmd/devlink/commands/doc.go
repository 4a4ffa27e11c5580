// Package commands defines the devlink CLI.
//
// Commands
//
//   - auth         Pair this device with an account, or confirm it already is
//   - run          Keep the registered session connected until interrupted
//   - status       Print what the credential store holds
//   - fingerprint  Print the identity fingerprint
//   - reset        Clear the credential store
//   - config       Print the resolved configuration
//
// # Implementation
//
// The root command resolves configuration (defaults, TOML file, DEVLINK_*
// environment, flags) and wires the app before any subcommand runs, so
// handlers share one opened store. The store stays locked until Execute
// returns.
package commands
