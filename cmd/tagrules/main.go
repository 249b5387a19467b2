package main

import (
	"os"

	"github.com/solatis/tagrules/cmd/tagrules/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
