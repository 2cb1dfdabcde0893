// Package main is the entry point for the rwctl administration tool.
package main

import (
	"os"

	"github.com/good-yellow-bee/reportwatch/cmd/rwctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
