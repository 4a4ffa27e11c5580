package types

import "bytes"

// Credentials is the persisted session material of one linked device.
//
// Fragments are opaque to everything but the components that produced
// them. Values are only built by the credential store; other packages
// read them and submit changes as a CredentialDelta.
type Credentials struct {
	Version    uint64
	Registered bool
	Fragments  map[FragmentName][]byte
}

// Empty reports whether no credential material exists.
func (c Credentials) Empty() bool {
	return c.Version == 0 && len(c.Fragments) == 0
}

// Fragment returns the named fragment and whether it is present.
func (c Credentials) Fragment(name FragmentName) ([]byte, bool) {
	b, ok := c.Fragments[name]
	return b, ok
}

// Account returns the linked account, empty before pairing completes.
func (c Credentials) Account() AccountID {
	return AccountID(c.Fragments[FragmentAccount])
}

// Clone returns a deep copy.
func (c Credentials) Clone() Credentials {
	out := Credentials{
		Version:    c.Version,
		Registered: c.Registered,
		Fragments:  make(map[FragmentName][]byte, len(c.Fragments)),
	}
	for k, v := range c.Fragments {
		out.Fragments[k] = append([]byte(nil), v...)
	}
	return out
}

// CredentialDelta is an incremental update to Credentials.
type CredentialDelta struct {
	Set    map[FragmentName][]byte
	Delete []FragmentName
}

// IsZero reports whether the delta carries no change at all.
func (d CredentialDelta) IsZero() bool {
	return len(d.Set) == 0 && len(d.Delete) == 0
}

// Changes reports whether applying d to c would alter c.
func (d CredentialDelta) Changes(c Credentials) bool {
	for name, value := range d.Set {
		cur, ok := c.Fragments[name]
		if !ok || !bytes.Equal(cur, value) {
			return true
		}
	}
	for _, name := range d.Delete {
		if _, set := d.Set[name]; set {
			continue
		}
		if _, ok := c.Fragments[name]; ok {
			return true
		}
	}
	return false
}

// Apply returns c with d merged in. Deletes are applied before sets, so a
// name present in both ends up set. Version is left unchanged.
func (d CredentialDelta) Apply(c Credentials) Credentials {
	out := c.Clone()
	for _, name := range d.Delete {
		delete(out.Fragments, name)
	}
	for name, value := range d.Set {
		out.Fragments[name] = append([]byte(nil), value...)
	}
	_, out.Registered = out.Fragments[FragmentRegistered]
	return out
}

// RegisteredDelta marks the credentials registered, recording account
// when it is known.
func RegisteredDelta(account AccountID) CredentialDelta {
	d := CredentialDelta{Set: map[FragmentName][]byte{
		FragmentRegistered: []byte("1"),
	}}
	if account != "" {
		d.Set[FragmentAccount] = []byte(account)
	}
	return d
}
