package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"devlink/internal/services/prekey"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print what the credential store holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			creds := appCtx.Store.Load()

			fmt.Fprintf(out, "store:      %s\n", appCtx.Store.Dir())
			fmt.Fprintf(out, "registered: %t\n", creds.Registered)
			if creds.Registered {
				fmt.Fprintf(out, "account:    %s\n", creds.Account())
			}
			fmt.Fprintf(out, "version:    %d\n", creds.Version)

			names := make([]string, 0, len(creds.Fragments))
			for name := range creds.Fragments {
				names = append(names, string(name))
			}
			sort.Strings(names)
			fmt.Fprintf(out, "fragments:  %d %v\n", len(names), names)

			id, err := appCtx.IDs.LoadIdentity(creds)
			if err != nil {
				fmt.Fprintln(out, "identity:   none")
				return nil
			}
			fp, _ := appCtx.IDs.FingerprintIdentity(creds)
			fmt.Fprintf(out, "identity:   %s\n", fp)

			if spk, err := prekey.LoadSignedPreKey(creds, id); err != nil {
				fmt.Fprintf(out, "signed pre-key: invalid (%v)\n", err)
			} else {
				fmt.Fprintf(out, "signed pre-key: #%d verified\n", spk.ID)
			}
			if opks, err := prekey.LoadOneTimePreKeys(creds); err == nil {
				fmt.Fprintf(out, "one-time pre-keys: %d\n", len(opks))
			}
			return nil
		},
	}
}
