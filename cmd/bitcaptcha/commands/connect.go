package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deekay/bitcaptcha/internal/protocol/nwc"
	"github.com/deekay/bitcaptcha/internal/store"
)

// connect <uri>: validate a connection string and store it encrypted.
func connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <uri>",
		Short: "Validate and store a wallet connection string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			params, err := nwc.ParseConnectionString(args[0])
			if err != nil {
				return err
			}
			cs := store.NewCredentialFileStore(home)
			if err := cs.SaveConnection(passphrase, args[0]); err != nil {
				return err
			}
			fmt.Printf("Connected to wallet %s via %s\n", params.WalletPubKey, params.RelayURL)
			return nil
		},
	}
}
