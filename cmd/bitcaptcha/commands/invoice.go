package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// invoice: one make_invoice round trip, no settlement watching.
func invoiceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invoice",
		Short: "Request a fresh invoice from the wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if wire == nil {
				return fmt.Errorf("no wallet configured. use --uri or connect first")
			}
			inv, err := wire.Wallet.MakeInvoice(cmd.Context(), amountMsat, memo)
			if err != nil {
				return err
			}
			fmt.Printf("Invoice:      %s\n", inv.Invoice)
			fmt.Printf("Payment hash: %s\n", inv.PaymentHash)
			if inv.ExpiresAt > 0 {
				fmt.Printf("Expires at:   %d\n", inv.ExpiresAt)
			}
			return nil
		},
	}
}
