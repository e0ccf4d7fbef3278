package main

import (
	"os"

	"github.com/arnold/tribes-api/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
