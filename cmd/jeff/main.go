package main

import (
	"os"

	"github.com/bdobrica/Jeff/internal/jeff/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
