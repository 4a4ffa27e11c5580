// Package prekey generates the signed pre-key and the batch of one-time
// pre-keys a linked device advertises, and decodes them back from stored
// credentials.
package prekey
