// Package store provides durable file-based persistence for a device's
// credentials.
//
// CredentialFileStore keeps every credential fragment in its own
// content-addressed blob under <dir>/fragments and names the live set in
// <dir>/manifest.json. Replacing the manifest is the only commit point, so
// a crash during an update leaves either the previous or the new state on
// disk and never a mix. Fragments may be sealed at rest with a passphrase.
//
// A store directory belongs to one process at a time; Open takes an
// exclusive lock on <dir>/.lock.
package store
