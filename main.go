package main

import (
	"os"

	"github.com/datahubgov/govhub/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
