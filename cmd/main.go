// synapse: job-matching swipe feed and match ledger.
//
// Serves the feed, swipe, match and application-status operations over
// HTTP (for the Gateway) and gRPC, scores matches, and opens a conversation
// once per accepted match.
package main

import (
	"fmt"
	"os"

	"github.com/AtharvaWandhare/synapse/internal/cli"
)

func main() {
	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "[synapse] %v\n", err)
		os.Exit(1)
	}
}
