package main

import (
	"os"

	"github.com/dunamismax/iconflow/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
