package commands

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"devlink/internal/app"
	"devlink/internal/logging"
)

var (
	configPath    string
	storeDir      string
	relayURL      string
	passphrase    string
	passFile      string
	logLevel      string
	pairTimeout   time.Duration
	challengeFile string

	appCtx *app.App
)

func Execute() error {
	root := &cobra.Command{
		Use:           "devlink",
		Short:         "Link this machine to a messaging account as a companion device",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), os.Getenv)
			if err != nil {
				return err
			}
			if passFile != "" {
				if cfg.Passphrase, err = readPassphrase(passFile, os.Stdin, cmd.ErrOrStderr()); err != nil {
					return err
				}
			}
			log := logging.New(logging.Options{App: "devlink", Level: cfg.LogLevel, Out: cmd.ErrOrStderr()})
			appCtx, err = app.Wire(cfg, log, cmd.OutOrStdout())
			return err
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file (default $"+app.EnvConfig+")")
	root.PersistentFlags().StringVar(&storeDir, "store", "", "credential store directory (default ~/.devlink/store)")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase sealing credentials at rest")
	root.PersistentFlags().StringVar(&passFile, "passphrase-file", "", "read the passphrase from a file, or \"-\" to prompt")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "trace|debug|info|warn|error")

	root.AddCommand(authCmd(), runCmd(), statusCmd(), fingerprintCmd(), resetCmd(), configCmd())

	defer func() {
		_ = appCtx.Close()
	}()
	return root.Execute()
}

// resolveConfig layers defaults, the config file, the environment and
// explicitly set flags, in that order.
func resolveConfig(flags *pflag.FlagSet, getenv func(string) string) (app.Config, error) {
	cfg := app.DefaultConfig()

	path := configPath
	if !flags.Changed("config") {
		path = getenv(app.EnvConfig)
	}
	if path != "" {
		if err := app.LoadFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	app.ApplyEnv(&cfg, getenv)

	if flags.Changed("store") {
		cfg.StoreDir = storeDir
	}
	if flags.Changed("relay") {
		cfg.RelayURL = relayURL
	}
	if flags.Changed("passphrase") {
		cfg.Passphrase = passphrase
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if f := flags.Lookup("timeout"); f != nil && f.Changed {
		cfg.PairingTimeout = pairTimeout
	}
	if f := flags.Lookup("challenge-file"); f != nil && f.Changed {
		cfg.ChallengeFile = challengeFile
	}
	return cfg, nil
}
