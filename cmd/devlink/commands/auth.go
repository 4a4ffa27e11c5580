package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"devlink/internal/domain"
	"devlink/internal/services/identity"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Pair this device, or confirm stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pass := appCtx.Config.Passphrase; pass != "" && appCtx.Store.Load().Empty() {
				if err := identity.CheckPassphrase(pass); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := appCtx.Sessions.Authenticate(ctx)
			if err != nil {
				return err
			}
			creds := appCtx.Store.Load()
			switch res {
			case domain.AlreadyRegistered:
				fmt.Fprintf(cmd.OutOrStdout(), "Already registered as %s.\n", creds.Account())
			case domain.Paired:
				fmt.Fprintf(cmd.OutOrStdout(), "Paired as %s.\n", creds.Account())
				if fp, err := appCtx.IDs.FingerprintIdentity(creds); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\n", fp)
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&pairTimeout, "timeout", 0, "pairing window (default 3m)")
	cmd.Flags().StringVar(&challengeFile, "challenge-file", "", "also write each challenge payload to this file")
	return cmd
}
