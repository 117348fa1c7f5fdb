// Package main provides the release panel CLI application.
// It runs the interactive panel or a standalone stdio host.
package main

import (
	"log"
	"os"

	"github.com/clean-dependency-project/cdpanel/internal/cli"
)

func main() {
	app := cli.NewApp()

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
