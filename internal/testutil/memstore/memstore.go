// Package memstore is an in-memory domain.CredentialStore for tests.
package memstore

import (
	"sync"

	"devlink/internal/domain"
)

// Store keeps credentials in memory and can be told to fail writes.
type Store struct {
	mu       sync.Mutex
	creds    domain.Credentials
	applyErr error
	commits  int
	clears   int
}

var _ domain.CredentialStore = (*Store)(nil)

// New returns an empty store.
func New() *Store { return &Store{} }

// Registered returns a store that already holds registered credentials.
func Registered(account domain.AccountID) *Store {
	s := New()
	_ = s.ApplyUpdate(domain.RegisteredDelta(account))
	return s
}

func (s *Store) Load() domain.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creds.Empty() {
		return domain.Credentials{}
	}
	return s.creds.Clone()
}

func (s *Store) ApplyUpdate(delta domain.CredentialDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return &domain.PersistenceError{Op: "apply update", Err: s.applyErr}
	}
	if delta.IsZero() || !delta.Changes(s.creds) {
		return nil
	}
	next := delta.Apply(s.creds)
	next.Version = s.creds.Version + 1
	s.creds = next
	s.commits++
	return nil
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = domain.Credentials{}
	s.clears++
	return nil
}

// FailApply makes every later ApplyUpdate fail with err. Nil restores
// normal behaviour.
func (s *Store) FailApply(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyErr = err
}

// Commits returns how many updates changed the credentials.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Clears returns how many times Clear was called.
func (s *Store) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}
