package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/engagelens/internal/config"
)

// ConfigCommand returns the config command
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Initialize a new configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   "engagelens.toml",
					},
				},
				Action: runConfigInit,
			},
			{
				Name:   "validate",
				Usage:  "Validate the configuration file",
				Action: runConfigValidate,
			},
			{
				Name:   "show",
				Usage:  "Show the effective configuration with secrets masked",
				Action: runConfigShow,
			},
		},
	}
}

func runConfigInit(c *cli.Context) error {
	outputPath := c.String("output")

	if err := config.InitConfig(outputPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Created configuration file at %s\n", outputPath)
	return nil
}

func runConfigValidate(c *cli.Context) error {
	configPath := c.String("config")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Println("Configuration is valid")
	return nil
}

// runConfigShow prints the effective configuration after the full merge
// chain (defaults, file, environment), with every credential masked.
func runConfigShow(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Printf("target              = %q\n", cfg.Target)
	fmt.Printf("partners            = %d\n", cfg.Partners)
	fmt.Printf("posts               = %d\n", cfg.Posts)
	fmt.Printf("api.endpoint        = %q\n", cfg.API.Endpoint)
	fmt.Printf("api.token           = %s\n", maskSecret(cfg.API.Token))
	fmt.Printf("api.delegated       = %s\n", maskSecret(cfg.API.Delegated))
	fmt.Printf("analysis.provider   = %q\n", cfg.Analysis.Provider)
	fmt.Printf("analysis.model      = %q\n", cfg.Analysis.Model)
	fmt.Printf("analysis.key        = %s\n", maskSecret(cfg.Analysis.Key))
	fmt.Printf("cache.backend       = %q\n", cfg.Cache.Backend)
	fmt.Printf("cache.dir           = %q\n", cfg.Cache.Dir)
	fmt.Printf("boost.enabled       = %v\n", cfg.Boost.Enabled)
	fmt.Printf("boost.strategy      = %q\n", cfg.Boost.Strategy)
	fmt.Printf("boost.value         = %g\n", cfg.Boost.Value)
	fmt.Printf("output.dir          = %q\n", cfg.Output.Dir)
	fmt.Printf("concurrency.workers = %d\n", cfg.Concurrency.Workers)
	return nil
}

// maskSecret keeps just enough of a credential to recognize it.
func maskSecret(value string) string {
	if value == "" {
		return "(not set)"
	}
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}
