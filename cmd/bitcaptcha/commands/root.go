package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/deekay/bitcaptcha/internal/app"
	"github.com/deekay/bitcaptcha/internal/store"
)

var (
	home       string
	uri        string
	passphrase string
	amountMsat int64
	memo       string

	wire *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:   "bitcaptcha",
		Short: "Lightning payment gate over an encrypted wallet connection",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".bitcaptcha")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			// connect manages credentials itself and needs no wallet.
			if cmd.Name() == "connect" {
				return nil
			}

			if uri == "" && passphrase != "" {
				stored, err := store.NewCredentialFileStore(home).LoadConnection(passphrase)
				if err == nil {
					uri = stored
				}
			}
			if uri == "" {
				return nil // commands that need the wallet check for this
			}

			w, err := app.NewWire(app.Config{
				Home:        home,
				URI:         uri,
				AmountMsat:  amountMsat,
				Description: memo,
			}, nil)
			if err != nil {
				return err
			}
			wire = w
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.bitcaptcha)")
	root.PersistentFlags().StringVar(&uri, "uri", "", "wallet connection string (nostr+walletconnect://...)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting stored credentials")
	root.PersistentFlags().Int64Var(&amountMsat, "amount", 21000, "invoice amount in millisatoshis")
	root.PersistentFlags().StringVar(&memo, "memo", "bitcaptcha unlock", "invoice description")

	root.AddCommand(connectCmd(), infoCmd(), invoiceCmd(), gateCmd(), receiptsCmd(), verifyCmd())
	return root.Execute()
}
