// Package main provides the entry point for the scurry CLI.
package main

import (
	"os"

	"github.com/mfirdausazizi/scurrydb-sub002/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
