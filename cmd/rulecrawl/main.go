// Package main is the entry point for the rulecrawl CLI.
package main

import (
	"os"

	"github.com/jmylchreest/rulecrawl/cmd/rulecrawl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
