package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"devlink/internal/logging"
	"devlink/internal/relay"
)

var (
	adminURL string
	logLevel string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "relay",
		Short:         "Development relay for devlink",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&adminURL, "url", "http://127.0.0.1:8080", "relay base URL for admin commands")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "trace|debug|info|warn|error")
	root.AddCommand(serveCmd(), pairCmd(), logoutCmd(), replaceCmd(), accountsCmd())
	return root
}

func serveCmd() *cobra.Command {
	cfg := relay.DefaultServerConfig()
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the relay until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(logging.Options{App: "relay", Level: logLevel, Out: cmd.ErrOrStderr()})
			srv := &http.Server{
				Addr:              addr,
				Handler:           relay.NewServer(cfg, log).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Msg("relay listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().DurationVar(&cfg.FirstRefTTL, "first-ttl", cfg.FirstRefTTL, "lifetime of the first pairing ref")
	cmd.Flags().DurationVar(&cfg.NextRefTTL, "next-ttl", cfg.NextRefTTL, "lifetime of each later pairing ref")
	cmd.Flags().IntVar(&cfg.MaxRefs, "max-refs", cfg.MaxRefs, "refs issued before closing with 408")
	cmd.Flags().BoolVar(&cfg.RestartAfterPair, "restart-after-pair", cfg.RestartAfterPair, "close with 515 after pairing")
	cmd.Flags().DurationVar(&cfg.HelloTimeout, "hello-timeout", cfg.HelloTimeout, "time allowed for the device hello")
	return cmd
}

func admin() *relay.Admin {
	return relay.NewAdmin(adminURL, &http.Client{Timeout: 10 * time.Second})
}

func pairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair <ref|payload>",
		Short: "Approve a pairing challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := admin().Pair(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Paired %s\n", account)
			return nil
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout <account>",
		Short: "Unlink an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return admin().Logout(cmd.Context(), args[0])
		},
	}
}

func replaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replace <account>",
		Short: "Replace an account's live session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return admin().Replace(cmd.Context(), args[0])
		},
	}
}

func accountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List paired accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := admin().Accounts(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(accounts)
		},
	}
}
