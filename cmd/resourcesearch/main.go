// Package main provides the entry point for the resourcesearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/resourcesearch/cmd/resourcesearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
