// Command testbankd hosts the TestBank ledger contract and the HM25 fault
// fixtures for auditing harnesses.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
