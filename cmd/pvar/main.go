// Package main is the entry point for the pvar CLI tool.
package main

import (
	"os"

	"github.com/aidanlsb/promptvars/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
