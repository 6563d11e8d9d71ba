package main

import (
	"os"

	"github.com/vectorfold/embedgate/cmd/embedgate"
)

func main() {
	if err := embedgate.Execute(); err != nil {
		os.Exit(1)
	}
}
