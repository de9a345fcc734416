package cmd

import (
	"fmt"
	"runtime"
)

// Version is injected at build time via ldflags.
var Version = "development"

func runVersion() {
	fmt.Printf("spurbot %s (%s)\n", Version, runtime.Version())
}
