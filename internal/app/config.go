package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"devlink/internal/connection"
	"devlink/internal/domain"
	"devlink/internal/services/prekey"
)

// Environment overrides.
const (
	EnvStore      = "DEVLINK_STORE"
	EnvRelay      = "DEVLINK_RELAY"
	EnvPassphrase = "DEVLINK_PASSPHRASE"
	EnvConfig     = "DEVLINK_CONFIG"
)

// Renderer choices.
const (
	RendererAuto    = "auto"
	RendererConsole = "console"
	RendererFile    = "file"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	StoreDir       string // credential store directory, e.g. $HOME/.devlink/store
	RelayURL       string // relay base URL, e.g. http://127.0.0.1:8080
	Passphrase     string // seals fragments at rest when set
	PairingTimeout time.Duration
	ChallengeFile  string
	Renderer       string
	PreKeyCount    int
	Client         domain.ClientInfo
	Backoff        connection.BackoffConfig
	LogLevel       string
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	storeDir := filepath.Join(".devlink", "store")
	if home, err := os.UserHomeDir(); err == nil {
		storeDir = filepath.Join(home, ".devlink", "store")
	}
	return Config{
		StoreDir:       storeDir,
		RelayURL:       "http://127.0.0.1:8080",
		PairingTimeout: 3 * time.Minute,
		Renderer:       RendererAuto,
		PreKeyCount:    prekey.DefaultCount,
		Client:         domain.ClientInfo{Name: "devlink", Browser: "Chrome", Version: "1.0.0"},
		Backoff:        connection.DefaultBackoff(),
		LogLevel:       "info",
	}
}

type fileConfig struct {
	StoreDir          string   `toml:"store_dir"`
	RelayURL          string   `toml:"relay_url"`
	PairingTimeout    string   `toml:"pairing_timeout"`
	ChallengeFile     string   `toml:"challenge_file"`
	Renderer          string   `toml:"renderer"`
	PreKeyCount       int      `toml:"prekey_count"`
	Client            []string `toml:"client"`
	BackoffInitial    string   `toml:"backoff_initial"`
	BackoffMax        string   `toml:"backoff_max"`
	BackoffMultiplier float64  `toml:"backoff_multiplier"`
	MaxAttempts       int      `toml:"max_attempts"`
	LogLevel          string   `toml:"log_level"`
}

// LoadFile overlays the keys defined in the TOML file at path onto cfg.
func LoadFile(cfg *Config, path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("store_dir") {
		cfg.StoreDir = expandHome(strings.TrimSpace(raw.StoreDir))
	}
	if meta.IsDefined("relay_url") {
		cfg.RelayURL = strings.TrimSpace(raw.RelayURL)
	}
	if meta.IsDefined("pairing_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PairingTimeout))
		if err != nil {
			return fmt.Errorf("parse pairing_timeout: %w", err)
		}
		cfg.PairingTimeout = d
	}
	if meta.IsDefined("challenge_file") {
		cfg.ChallengeFile = expandHome(strings.TrimSpace(raw.ChallengeFile))
	}
	if meta.IsDefined("renderer") {
		cfg.Renderer = strings.ToLower(strings.TrimSpace(raw.Renderer))
	}
	if meta.IsDefined("prekey_count") {
		cfg.PreKeyCount = raw.PreKeyCount
	}
	if meta.IsDefined("client") {
		if len(raw.Client) != 3 {
			return fmt.Errorf("parse client: want [name, browser, version], got %d values", len(raw.Client))
		}
		cfg.Client = domain.ClientInfo{Name: raw.Client[0], Browser: raw.Client[1], Version: raw.Client[2]}
	}
	if meta.IsDefined("backoff_initial") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.BackoffInitial))
		if err != nil {
			return fmt.Errorf("parse backoff_initial: %w", err)
		}
		cfg.Backoff.InitialDelay = d
	}
	if meta.IsDefined("backoff_max") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.BackoffMax))
		if err != nil {
			return fmt.Errorf("parse backoff_max: %w", err)
		}
		cfg.Backoff.MaxDelay = d
	}
	if meta.IsDefined("backoff_multiplier") {
		cfg.Backoff.Multiplier = raw.BackoffMultiplier
	}
	if meta.IsDefined("max_attempts") {
		cfg.Backoff.MaxAttempts = raw.MaxAttempts
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	return nil
}

// ApplyEnv overlays DEVLINK_* variables read through getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvStore)); v != "" {
		cfg.StoreDir = expandHome(v)
	}
	if v := strings.TrimSpace(getenv(EnvRelay)); v != "" {
		cfg.RelayURL = v
	}
	if v := getenv(EnvPassphrase); v != "" {
		cfg.Passphrase = v
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.StoreDir == "" {
		errs = append(errs, errors.New("store_dir is empty"))
	}
	if c.RelayURL == "" {
		errs = append(errs, errors.New("relay_url is empty"))
	}
	if c.PairingTimeout <= 0 {
		errs = append(errs, fmt.Errorf("pairing_timeout must be positive, got %s", c.PairingTimeout))
	}
	switch c.Renderer {
	case RendererAuto, RendererConsole:
	case RendererFile:
		if c.ChallengeFile == "" {
			errs = append(errs, errors.New("renderer \"file\" needs challenge_file"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown renderer %q", c.Renderer))
	}
	if c.PreKeyCount < 0 {
		errs = append(errs, fmt.Errorf("prekey_count must not be negative, got %d", c.PreKeyCount))
	}
	if c.Backoff.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("max_attempts must not be negative, got %d", c.Backoff.MaxAttempts))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// String renders the config without the passphrase.
func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "store_dir = %s\n", strconv.Quote(c.StoreDir))
	fmt.Fprintf(&b, "relay_url = %s\n", strconv.Quote(c.RelayURL))
	fmt.Fprintf(&b, "sealed = %t\n", c.Passphrase != "")
	fmt.Fprintf(&b, "pairing_timeout = %s\n", c.PairingTimeout)
	fmt.Fprintf(&b, "renderer = %s\n", c.Renderer)
	return b.String()
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
