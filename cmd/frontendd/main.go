package main

import (
	"fmt"
	"os"

	"github.com/searchengine/searchengine/internal/cmd/frontendcmd"
)

// Version information set by build flags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	frontendcmd.SetVersionInfo(Version, BuildTime)

	if err := frontendcmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
