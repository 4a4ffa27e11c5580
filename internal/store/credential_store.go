package store

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"devlink/internal/domain"
	"devlink/internal/logging"
)

const (
	manifestFile   = "manifest.json"
	fragmentsDir   = "fragments"
	blobSuffix     = ".blob"
	manifestFormat = 1
)

var errDigestMismatch = errors.New("store: fragment digest mismatch")

type manifest struct {
	Format    int                      `json:"format"`
	Version   uint64                   `json:"version"`
	Fragments map[string]manifestEntry `json:"fragments"`
}

type manifestEntry struct {
	File   string `json:"file"`
	Digest string `json:"digest"`
	Sealed bool   `json:"sealed,omitempty"`
}

// Option configures a CredentialFileStore.
type Option func(*CredentialFileStore)

// WithLogger sets the logger used for corruption and retry warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(s *CredentialFileStore) { s.log = logging.Component(l, "store") }
}

// WithPassphrase seals fragments at rest. An empty passphrase disables sealing.
func WithPassphrase(passphrase string) Option {
	return func(s *CredentialFileStore) { s.passphrase = passphrase }
}

// WithKDFParams overrides the scrypt cost parameters used when sealing.
func WithKDFParams(n, r, p int) Option {
	return func(s *CredentialFileStore) { s.kdf = kdfParams{N: n, R: r, P: p} }
}

// CredentialFileStore stores credentials under one directory.
type CredentialFileStore struct {
	dir        string
	passphrase string
	kdf        kdfParams
	log        zerolog.Logger

	mu   sync.Mutex
	lock *dirLock

	// beforeCommit runs after fragment blobs are durable and before the
	// manifest is replaced. Tests use it to simulate a crash.
	beforeCommit func() error
}

var _ domain.CredentialStore = (*CredentialFileStore)(nil)

// Open creates dir if needed and takes the store lock. It fails with
// domain.ErrStoreLocked when another process holds the directory.
func Open(dir string, opts ...Option) (*CredentialFileStore, error) {
	s := &CredentialFileStore{
		dir: dir,
		kdf: kdfParamsDefault(),
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(s.fragmentsPath(), 0o700); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	lock, err := acquireLock(filepath.Join(dir, lockFile))
	if err != nil {
		return nil, err
	}
	s.lock = lock
	return s, nil
}

// Dir returns the store directory.
func (s *CredentialFileStore) Dir() string { return s.dir }

// Close releases the directory lock.
func (s *CredentialFileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.lock.release()
	s.lock = nil
	return err
}

// Load returns the committed credentials. Missing or unreadable material
// yields empty credentials; corruption is logged, never returned.
func (s *CredentialFileStore) Load() domain.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	creds, _, _ := s.loadLocked()
	return creds
}

// ApplyUpdate merges delta into the committed credentials and returns once
// the result is durable. A delta that changes nothing is not written.
// Committed material that cannot be read is never written over; Clear is
// the only way past it.
func (s *CredentialFileStore) ApplyUpdate(delta domain.CredentialDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if delta.IsZero() {
		return nil
	}
	cur, prev, err := s.loadLocked()
	if err != nil {
		return &domain.PersistenceError{Op: "apply update", Err: err}
	}
	if !delta.Changes(cur) {
		s.log.Debug().Uint64("version", cur.Version).Msg("credential update already applied")
		return nil
	}
	next := delta.Apply(cur)
	next.Version = cur.Version + 1

	err = s.commit(prev, cur, next)
	if err != nil {
		s.log.Warn().Err(err).Msg("credential write failed, retrying")
		err = s.commit(prev, cur, next)
	}
	if err != nil {
		return &domain.PersistenceError{Op: "apply update", Err: err}
	}
	s.log.Debug().
		Uint64("version", next.Version).
		Int("fragments", len(next.Fragments)).
		Msg("credentials committed")
	return nil
}

// Clear removes every persisted fragment. Load returns empty credentials
// afterwards.
func (s *CredentialFileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.manifestPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.PersistenceError{Op: "clear", Err: err}
	}
	if err := syncDir(s.dir); err != nil {
		return &domain.PersistenceError{Op: "clear", Err: err}
	}
	if err := os.RemoveAll(s.fragmentsPath()); err != nil {
		return &domain.PersistenceError{Op: "clear", Err: err}
	}
	if err := os.MkdirAll(s.fragmentsPath(), 0o700); err != nil {
		return &domain.PersistenceError{Op: "clear", Err: err}
	}
	s.log.Info().Str("dir", s.dir).Msg("credentials cleared")
	return nil
}

// loadLocked reads the committed state. A missing manifest is an empty
// store. Anything on disk that cannot be read yields empty credentials and
// an error wrapping domain.ErrStoreUnreadable.
func (s *CredentialFileStore) loadLocked() (domain.Credentials, *manifest, error) {
	var m manifest
	ok, err := readJSON(s.manifestPath(), &m)
	if err != nil {
		s.log.Warn().Err(err).Msg("credential manifest unreadable, treating store as empty")
		return domain.Credentials{}, nil, fmt.Errorf("%w: manifest: %w", domain.ErrStoreUnreadable, err)
	}
	if !ok {
		return domain.Credentials{}, nil, nil
	}
	if m.Format > manifestFormat {
		s.log.Warn().Int("format", m.Format).Msg("credential manifest format unsupported, treating store as empty")
		return domain.Credentials{}, nil, fmt.Errorf("%w: manifest format %d", domain.ErrStoreUnreadable, m.Format)
	}

	creds := domain.Credentials{
		Version:   m.Version,
		Fragments: make(map[domain.FragmentName][]byte, len(m.Fragments)),
	}
	for name, entry := range m.Fragments {
		value, err := s.readFragment(name, entry)
		if err != nil {
			s.log.Warn().Err(err).Str("fragment", name).Msg("credential fragment unreadable, treating store as empty")
			return domain.Credentials{}, nil, fmt.Errorf("%w: fragment %s: %w", domain.ErrStoreUnreadable, name, err)
		}
		creds.Fragments[domain.FragmentName(name)] = value
	}
	_, creds.Registered = creds.Fragments[domain.FragmentRegistered]
	return creds, &m, nil
}

func (s *CredentialFileStore) readFragment(name string, entry manifestEntry) ([]byte, error) {
	if entry.File != filepath.Base(entry.File) {
		return nil, fmt.Errorf("store: invalid fragment file %q", entry.File)
	}
	raw, err := os.ReadFile(filepath.Join(s.fragmentsPath(), entry.File))
	if err != nil {
		return nil, err
	}
	if digest(raw) != entry.Digest {
		return nil, errDigestMismatch
	}
	if !entry.Sealed {
		return raw, nil
	}
	if s.passphrase == "" {
		return nil, errors.New("store: fragment is sealed and no passphrase is configured")
	}
	return unseal(s.passphrase, raw, []byte(name))
}

// commit writes next durably. Fragments unchanged since cur keep their
// existing blobs.
func (s *CredentialFileStore) commit(prev *manifest, cur, next domain.Credentials) error {
	if err := os.MkdirAll(s.fragmentsPath(), 0o700); err != nil {
		return err
	}
	sealed := s.passphrase != ""
	m := manifest{
		Format:    manifestFormat,
		Version:   next.Version,
		Fragments: make(map[string]manifestEntry, len(next.Fragments)),
	}
	for name, value := range next.Fragments {
		key := string(name)
		if prev != nil {
			if old, ok := prev.Fragments[key]; ok && old.Sealed == sealed && bytes.Equal(cur.Fragments[name], value) {
				m.Fragments[key] = old
				continue
			}
		}
		entry, err := s.writeFragment(key, value, sealed)
		if err != nil {
			return fmt.Errorf("write fragment %s: %w", key, err)
		}
		m.Fragments[key] = entry
	}
	if err := syncDir(s.fragmentsPath()); err != nil {
		return err
	}
	if s.beforeCommit != nil {
		if err := s.beforeCommit(); err != nil {
			return err
		}
	}
	if err := writeJSON(s.manifestPath(), m, 0o600); err != nil {
		return err
	}
	if err := syncDir(s.dir); err != nil {
		return err
	}
	s.collectGarbage(m)
	return nil
}

func (s *CredentialFileStore) writeFragment(name string, value []byte, sealed bool) (manifestEntry, error) {
	data := value
	if sealed {
		var err error
		if data, err = seal(s.passphrase, value, []byte(name), s.kdf); err != nil {
			return manifestEntry{}, err
		}
	}
	sum := digest(data)
	entry := manifestEntry{
		File:   blobName(name, sum),
		Digest: sum,
		Sealed: sealed,
	}
	path := filepath.Join(s.fragmentsPath(), entry.File)
	if existing, err := os.ReadFile(path); err == nil && digest(existing) == sum {
		return entry, nil
	}
	if err := writeFile(path, data, 0o600); err != nil {
		return manifestEntry{}, err
	}
	return entry, nil
}

// collectGarbage removes blobs the committed manifest no longer names.
// Failures only leave stray files behind.
func (s *CredentialFileStore) collectGarbage(m manifest) {
	live := make(map[string]bool, len(m.Fragments))
	for _, e := range m.Fragments {
		live[e.File] = true
	}
	entries, err := os.ReadDir(s.fragmentsPath())
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || live[e.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(s.fragmentsPath(), e.Name())); err != nil {
			s.log.Debug().Err(err).Str("file", e.Name()).Msg("stale fragment not removed")
		}
	}
}

func (s *CredentialFileStore) manifestPath() string { return filepath.Join(s.dir, manifestFile) }

func (s *CredentialFileStore) fragmentsPath() string { return filepath.Join(s.dir, fragmentsDir) }

func digest(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// blobName builds a file name from a fragment name and its digest. Names
// outside [a-z0-9_-] are hex encoded.
func blobName(name, sum string) string {
	safe := name
	if strings.IndexFunc(name, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_')
	}) >= 0 || name == "" {
		safe = "x" + hex.EncodeToString([]byte(name))
	}
	return safe + "-" + sum[:16] + blobSuffix
}
