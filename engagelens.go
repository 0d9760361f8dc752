package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/engagelens/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "engagelens",
		Usage:   "Find who an account really engages with and what their best posts share",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			cmd.AnalyzeCommand(),
			cmd.ConfigCommand(),
			cmd.CacheCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
