// Package main is the entry point for tesla-tracker.
package main

import (
	"os"

	"github.com/XaviFortes/tesla-tracker/cmd/tesla-tracker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
