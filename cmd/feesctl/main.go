// Command feesctl is the fee desk on the command line: it lists ledgers,
// records payments and prints receipts against a running fee server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
