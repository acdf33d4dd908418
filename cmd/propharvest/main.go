// Package main is the entry point for the propharvest CLI.
package main

import (
	"os"

	"github.com/jmylchreest/propharvest/cmd/propharvest/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
