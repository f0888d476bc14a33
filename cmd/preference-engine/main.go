package main

import (
	"os"

	"github.com/alejandroruanova/preference-engine/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
