// Package main is the entry point for the syncctl operator tool.
package main

import (
	"os"

	"example.com/stravasync/cmd/syncctl/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
