package main

import (
	"os"

	"github.com/CedrosPay/cardpay/cmd/cardpay/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
