package main

import (
	"os"

	"ReviewRelay/cmd/reviewrelay/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
