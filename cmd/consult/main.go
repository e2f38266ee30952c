package main

import (
	"os"

	"github.com/futig/sla-consultant/internal/builder"
	"github.com/futig/sla-consultant/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(builder.BuildConsole).Execute(); err != nil {
		os.Exit(1)
	}
}
