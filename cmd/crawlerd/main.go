package main

import (
	"fmt"
	"os"

	"github.com/searchengine/searchengine/internal/cmd/crawlercmd"
)

// Version information set by build flags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	crawlercmd.SetVersionInfo(Version, BuildTime)

	if err := crawlercmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
