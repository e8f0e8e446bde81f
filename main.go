package main

import (
	"os"

	"github.com/mjolnir-routing/mjolnir/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
