package main

import (
	"os"

	"github.com/upquant/upquant/cmd/upquant/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
