package pairing

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"devlink/internal/domain"
	"devlink/internal/logging"
)

var errEmptyChallenge = errors.New("pairing: empty challenge payload")

// Issuer tracks the newest pairing challenge and renders each new one.
type Issuer struct {
	renderer Renderer
	log      zerolog.Logger

	mu      sync.Mutex
	pending domain.PairingChallenge
	has     bool
	issued  int
}

var _ domain.ChallengeSink = (*Issuer)(nil)

// NewIssuer returns an Issuer rendering through r.
func NewIssuer(r Renderer, log zerolog.Logger) *Issuer {
	return &Issuer{
		renderer: r,
		log:      logging.Component(log, "pairing"),
	}
}

// Offer makes ch the pending challenge and renders it. Offering the
// pending payload again does nothing.
func (i *Issuer) Offer(ch domain.PairingChallenge) error {
	if ch.Payload == "" {
		return errEmptyChallenge
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.has && i.pending.Payload == ch.Payload {
		return nil
	}
	i.pending = ch
	i.has = true
	i.issued++
	i.log.Debug().Int("issued", i.issued).Dur("ttl", ch.TTL).Msg("rendering challenge")
	return i.renderer.Render(ch.Payload)
}

// Consume invalidates the pending challenge and dismisses its rendering.
func (i *Issuer) Consume() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.has {
		return
	}
	i.has = false
	i.pending = domain.PairingChallenge{}
	if d, ok := i.renderer.(Dismisser); ok {
		if err := d.Dismiss(); err != nil {
			i.log.Warn().Err(err).Msg("challenge output not dismissed")
		}
	}
}

// Pending returns the newest challenge if it is still valid at now.
func (i *Issuer) Pending(now time.Time) (domain.PairingChallenge, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.has || !i.pending.Valid(now) {
		return domain.PairingChallenge{}, false
	}
	return i.pending, true
}

// Issued returns how many distinct challenges were rendered.
func (i *Issuer) Issued() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.issued
}
