package main

import (
	"os"

	"github.com/blingmoon/simple-goflow/cmd/goflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
