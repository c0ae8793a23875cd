package main

import (
	"os"

	"github.com/mattmok/idea-spring-boot-assistant/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
