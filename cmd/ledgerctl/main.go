// Command ledgerctl operates a gift ledger deployment: schema migrations,
// demo data, token minting, and the counterparty authorization flow against a
// running API.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
