// Package main is the entry point for the pontualctl admin tool.
package main

import (
	"os"

	"github.com/ponto-labs/pontual/cmd/pontualctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
