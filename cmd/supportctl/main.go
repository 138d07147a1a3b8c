// Package main provides the entry point for the supportctl CLI.
package main

import (
	"os"

	"github.com/supportdesk/supportbot/cmd/supportctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
