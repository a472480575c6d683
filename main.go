package main

import (
	"os"

	"github.com/matrixise/token-ledger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
