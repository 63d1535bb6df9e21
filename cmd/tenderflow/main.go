package main

import (
	"os"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
