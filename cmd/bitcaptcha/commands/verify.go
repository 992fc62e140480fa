package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deekay/bitcaptcha/internal/domain"
	"github.com/deekay/bitcaptcha/internal/store"
)

// verify <payment-hash> [preimage]: with a preimage, check it locally;
// without one, look for a stored receipt.
func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <payment-hash> [preimage]",
		Short: "Check a proof value or stored receipt for a payment hash",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := args[0]

			if len(args) == 2 {
				if !domain.VerifyPreimage(args[1], hash) {
					return fmt.Errorf("preimage does not hash to %s", hash)
				}
				fmt.Println("Valid: preimage hashes to the payment hash.")
				return nil
			}

			tok, ok, err := store.NewReceiptFileStore(home).LoadReceipt(hash)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no receipt stored for %s", hash)
			}
			if tok.Proved() {
				fmt.Printf("Proved receipt, settled at %d.\n", tok.SettledAt)
			} else {
				fmt.Printf("Trusted receipt (wallet-asserted), settled at %d.\n", tok.SettledAt)
			}
			return nil
		},
	}
}
