package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Query the connected wallet's capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			if wire == nil {
				return fmt.Errorf("no wallet configured. use --uri or connect first")
			}
			info, err := wire.Wallet.GetInfo(cmd.Context())
			if err != nil {
				return err
			}
			if info.Alias != "" {
				fmt.Printf("Alias:   %s\n", info.Alias)
			}
			if info.Network != "" {
				fmt.Printf("Network: %s\n", info.Network)
			}
			if len(info.Methods) > 0 {
				fmt.Printf("Methods: %s\n", strings.Join(info.Methods, ", "))
			}
			return nil
		},
	}
}
