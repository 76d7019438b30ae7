// Package main is the Bayan CLI entry point.
package main

import (
	"os"

	"github.com/hyperjump/bayan/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
