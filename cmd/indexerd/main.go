package main

import (
	"fmt"
	"os"

	"github.com/searchengine/searchengine/internal/cmd/indexercmd"
)

// Version information set by build flags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	indexercmd.SetVersionInfo(Version, BuildTime)

	if err := indexercmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
