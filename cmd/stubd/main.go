// stubd CLI - command-line interface for the stubd service simulator.
package main

import (
	"fmt"
	"os"

	"github.com/getstubd/stubd/pkg/cli"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	cli.SetVersion(Version, Commit, BuildDate)
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
