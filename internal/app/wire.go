package app

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"devlink/internal/pairing"
	"devlink/internal/relay"
	identitysvc "devlink/internal/services/identity"
	prekeysvc "devlink/internal/services/prekey"
	sessionsvc "devlink/internal/services/session"
	"devlink/internal/store"
)

// Wire constructs the dependency graph from cfg. Challenges are rendered
// to out. The returned App owns the store lock until Close.
func Wire(cfg Config, log zerolog.Logger, out io.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	storeOpts := []store.Option{store.WithLogger(log)}
	if cfg.Passphrase != "" {
		storeOpts = append(storeOpts, store.WithPassphrase(cfg.Passphrase))
	}
	st, err := store.Open(cfg.StoreDir, storeOpts...)
	if err != nil {
		return nil, err
	}

	rc, err := relay.NewClient(cfg.RelayURL, cfg.Client, log)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("relay client: %w", err)
	}

	issuer := pairing.NewIssuer(renderer(cfg, out), log)
	ids := identitysvc.New()
	pks := prekeysvc.New()

	sessCfg := sessionsvc.DefaultConfig()
	sessCfg.PairingTimeout = cfg.PairingTimeout
	sessCfg.PreKeyCount = cfg.PreKeyCount
	sessCfg.Backoff = cfg.Backoff

	sessions := sessionsvc.New(sessCfg, st, rc,
		sessionsvc.WithLogger(log),
		sessionsvc.WithChallengeSink(issuer),
		sessionsvc.WithKeyServices(ids, pks),
	)

	return &App{
		Config:   cfg,
		Log:      log,
		Store:    st,
		Relay:    rc,
		Issuer:   issuer,
		IDs:      ids,
		PreKeys:  pks,
		Sessions: sessions,
	}, nil
}

func renderer(cfg Config, out io.Writer) pairing.Renderer {
	console := pairing.ConsoleRenderer{Out: out}
	switch cfg.Renderer {
	case RendererConsole:
		return console
	case RendererFile:
		return pairing.FileRenderer{Path: cfg.ChallengeFile}
	default:
		if cfg.ChallengeFile != "" {
			return pairing.Multi(console, pairing.FileRenderer{Path: cfg.ChallengeFile})
		}
		return console
	}
}
