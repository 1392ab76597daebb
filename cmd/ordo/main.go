// Package main provides the entry point for the ordo CLI.
package main

import (
	"github.com/colthorp/ordo-cli-go/internal/cli"
)

func main() {
	cli.Execute()
}
