package main

import (
	"os"

	"github.com/solatis/datex/cmd/datex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
