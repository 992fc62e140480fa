package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deekay/bitcaptcha/internal/domain"
	"github.com/deekay/bitcaptcha/internal/payment"
)

// gate: run one full pay-to-proceed session interactively. The invoice is
// printed for the user to pay; typing "paid" triggers an accelerated
// re-check, and pasting a preimage settles immediately.
func gateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gate",
		Short: "Run a full pay-to-proceed session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if wire == nil {
				return fmt.Errorf("no wallet configured. use --uri or connect first")
			}
			g := wire.Gate

			g.Machine().Subscribe(func(st payment.State, d payment.Data) {
				switch st {
				case payment.StateAwaitingPayment:
					if d.Invoice != "" {
						fmt.Printf("Pay this invoice to continue:\n\n  %s\n\n", d.Invoice)
					}
				case payment.StateFailed:
					fmt.Printf("Payment failed: %s\n", d.ErrMessage)
				}
			})
			g.OnStall(func(misses int) {
				fmt.Println(`Still waiting. Type "paid" if you already paid, or paste the preimage.`)
			})

			go readAffordances(g)

			tok, err := g.Start(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println("Payment verified.")
			fmt.Printf("  payment hash: %s\n", tok.PaymentHash)
			if tok.Proved() {
				fmt.Printf("  preimage:     %s\n", tok.Preimage)
			} else {
				fmt.Println("  settlement asserted by the wallet (no preimage)")
			}
			return nil
		},
	}
}

type affordances interface {
	ConfirmPaid() error
	SubmitProof(preimage string) error
}

func readAffordances(g affordances) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.EqualFold(line, "paid"):
			if err := g.ConfirmPaid(); err == nil {
				fmt.Println("Re-checking...")
			}
		default:
			if err := g.SubmitProof(line); err != nil {
				if domain.IsCode(err, domain.ErrVerification) {
					fmt.Println("That preimage does not match the payment hash.")
				}
				continue
			}
			fmt.Println("Preimage accepted.")
		}
	}
}
