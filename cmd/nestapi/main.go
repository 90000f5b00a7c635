package main

import (
	"os"

	"github.com/tornermarton/nest-api/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
