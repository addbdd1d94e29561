package main

import (
	"os"

	"github.com/edgefilter/bodyroute/cmd/bodyroute/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
