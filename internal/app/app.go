package app

import (
	"github.com/rs/zerolog"

	"devlink/internal/domain"
	"devlink/internal/pairing"
	"devlink/internal/relay"
	"devlink/internal/services/session"
	"devlink/internal/store"
)

// App is what commands operate on.
type App struct {
	Config   Config
	Log      zerolog.Logger
	Store    *store.CredentialFileStore
	Relay    *relay.Client
	Issuer   *pairing.Issuer
	IDs      domain.IdentityService
	PreKeys  domain.PreKeyService
	Sessions *session.Service
}

// Close releases the store lock.
func (a *App) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
