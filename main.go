package main

import (
	"os"

	"github.com/parkade/parkade/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
