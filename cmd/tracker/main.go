// Command tracker values every holding and notifies users whose positions
// moved enough to matter. It is meant to be run from cron.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tracker: %v\n", err)
		os.Exit(1)
	}
}
