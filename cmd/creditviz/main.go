// Package main provides the creditviz CLI.
package main

import (
	"os"

	"github.com/mophones/creditviz/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
