package main

import (
	"os"
	_ "time/tzdata"

	"github.com/dukerupert/nudge/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
