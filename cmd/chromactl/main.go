package main

import (
	"fmt"
	"os"

	"github.com/psantana5/chromactl/cmd/chromactl/cmd"
	"github.com/psantana5/chromactl/internal/launcher"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(launcher.ExitCode(err))
	}
}
