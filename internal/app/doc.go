// Package app wires devlink's dependencies for the CLI.
//
// Config is resolved in layers: DefaultConfig, then an optional TOML file
// (LoadFile), then DEVLINK_* environment variables (ApplyEnv), then
// command-line flags set by the caller. Wire turns the result into an App
// holding the opened credential store, the relay transport, the pairing
// issuer and the services commands call.
package app
