package main

import (
	"os"

	"github.com/deekay/bitcaptcha/cmd/bitcaptcha/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
