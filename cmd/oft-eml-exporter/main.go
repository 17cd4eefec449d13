// Package main is the entry point for the OFT+EML exporter.
package main

import (
	"os"

	"github.com/shineum/oft-eml-exporter/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
