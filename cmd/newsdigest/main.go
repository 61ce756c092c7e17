// Command newsdigest builds the daily English reading digest and pushes it
// to the configured recipients. It is meant to be run from cron.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "newsdigest: %v\n", err)
		os.Exit(1)
	}
}
