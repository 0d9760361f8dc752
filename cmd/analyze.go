package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/engagelens/internal/analysis"
	"github.com/engagelens/internal/config"
	"github.com/engagelens/internal/graph"
	"github.com/engagelens/internal/llm"
	"github.com/engagelens/internal/logging"
	"github.com/engagelens/internal/pipeline"
	"github.com/engagelens/internal/social"
)

// AnalyzeCommand returns the analyze command
func AnalyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Rank a target account's engagement partners and analyze their best posts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Account handle to analyze (overrides config)",
			},
			&cli.IntFlag{
				Name:  "partners",
				Usage: "Number of top partners to rank",
			},
			&cli.IntFlag{
				Name:  "posts",
				Usage: "Top posts to keep per partner",
			},
			&cli.BoolFlag{
				Name:    "refresh",
				Aliases: []string{"r"},
				Usage:   "Bypass cache reads and fetch everything fresh",
			},
			&cli.BoolFlag{
				Name:  "no-analysis",
				Usage: "Skip the LLM analysis stage",
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "Override the analysis provider to use",
			},
			&cli.StringFlag{
				Name:    "model",
				Aliases: []string{"m"},
				Usage:   "Override the analysis model to use",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose output for this command",
			},
		},
		Action: runAnalyze,
	}
}

func runAnalyze(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Command-line flags override the file and environment.
	if target := c.String("target"); target != "" {
		cfg.Target = target
	}
	if n := c.Int("partners"); n > 0 {
		cfg.Partners = n
	}
	if n := c.Int("posts"); n > 0 {
		cfg.Posts = n
	}
	if provider := c.String("provider"); provider != "" {
		cfg.Analysis.Provider = provider
	}
	if model := c.String("model"); model != "" {
		cfg.Analysis.Model = model
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	runID := uuid.NewString()[:8]
	logger, closeLog, err := logging.NewRunLogger(logging.DefaultLogDir(), runID, c.Bool("verbose"))
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Analyzing @%s (run %s)\n", cfg.Target, runID)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer store.Close()

	client := social.NewClient(social.ClientOptions{
		Endpoint:  cfg.API.Endpoint,
		Token:     cfg.API.Token,
		Delegated: cfg.API.Delegated,
	}, logger)

	var analyzer pipeline.Analyzer
	if c.Bool("no-analysis") {
		fmt.Println("Analysis disabled, the report will carry rankings and posts only")
	} else {
		analyzer, err = buildAnalyzer(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to set up analysis: %w", err)
		}
	}

	pipe := pipeline.New(client, store, analyzer, logger)
	rep, err := pipe.Run(ctx, pipeline.Options{
		Target:   cfg.Target,
		Partners: cfg.Partners,
		Posts:    cfg.Posts,
		Workers:  cfg.Concurrency.Workers,
		Refresh:  c.Bool("refresh"),
		Boost: graph.BoostConfig{
			Enabled:  cfg.Boost.Enabled,
			Strategy: graph.BoostStrategy(cfg.Boost.Strategy),
			Value:    cfg.Boost.Value,
		},
	})
	if err != nil {
		return err
	}

	rep.RunID = runID
	jsonPath, mdPath, err := rep.WriteFiles(cfg.Output.Dir)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	fmt.Printf("Ranked %d partners for @%s\n", len(rep.Partners), rep.Target.Handle)
	fmt.Printf("Report written to %s\n", jsonPath)
	fmt.Printf("Digest written to %s\n", mdPath)
	return nil
}

// buildAnalyzer wires the LLM stack: connector, retrying client, secret
// scrubber, analyzer.
func buildAnalyzer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (pipeline.Analyzer, error) {
	connector, err := llm.NewConnector(ctx, llm.ConnectorOptions{
		Provider: llm.Provider(cfg.Analysis.Provider),
		APIKey:   cfg.Analysis.Key,
		BaseURL:  cfg.Analysis.Endpoint,
		ModelConfig: llm.ModelConfig{
			Model:       cfg.Analysis.Model,
			Temperature: 0.7,
			MaxTokens:   4096,
		},
	})
	if err != nil {
		return nil, err
	}

	sanitizer, err := analysis.NewSanitizer(logger)
	if err != nil {
		return nil, err
	}

	return analysis.NewAnalyzer(llm.NewClient(connector, logger), sanitizer, logger), nil
}
