package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deekay/bitcaptcha/internal/store"
)

func receiptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "receipts",
		Short: "List stored payment receipts",
		RunE: func(cmd *cobra.Command, args []string) error {
			toks, err := store.NewReceiptFileStore(home).ListReceipts()
			if err != nil {
				return err
			}
			if len(toks) == 0 {
				fmt.Println("No receipts stored.")
				return nil
			}
			for _, tok := range toks {
				confidence := "trusted"
				if tok.Proved() {
					confidence = "proved"
				}
				fmt.Printf("%s  %s  %s\n",
					time.Unix(tok.SettledAt, 0).UTC().Format(time.RFC3339),
					confidence,
					tok.PaymentHash,
				)
			}
			return nil
		},
	}
}
