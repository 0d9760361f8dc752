package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/engagelens/internal/cache"
	"github.com/engagelens/internal/config"
	"github.com/engagelens/internal/logging"
)

// CacheCommand returns the cache command
func CacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the fetch cache",
		Subcommands: []*cli.Command{
			{
				Name:   "clear",
				Usage:  "Remove every cached entry",
				Action: runCacheClear,
			},
			{
				Name:   "stats",
				Usage:  "Show entry counts per namespace",
				Action: runCacheStats,
			},
		},
	}
}

func runCacheClear(c *cli.Context) error {
	ctx := context.Background()

	store, err := withStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Println("Cache cleared")
	return nil
}

func runCacheStats(c *cli.Context) error {
	ctx := context.Background()

	store, err := withStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	namespaces := make([]string, 0, len(stats))
	for namespace := range stats {
		namespaces = append(namespaces, namespace)
	}
	sort.Strings(namespaces)

	total := 0
	for _, namespace := range namespaces {
		fmt.Printf("%-22s %d\n", namespace, stats[namespace])
		total += stats[namespace]
	}
	fmt.Printf("%-22s %d\n", "total", total)
	return nil
}

func withStore(ctx context.Context, c *cli.Context) (cache.Store, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return openStore(ctx, cfg, logging.New(false))
}

// openStore picks the cache backend the configuration names.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		return cache.NewSQLiteStore(filepath.Join(cfg.Cache.Dir, "engagelens.db"), log)
	case config.BackendPostgres:
		return cache.NewPostgresStore(ctx, cfg.Cache.DSN, log)
	default:
		return cache.NewFileStore(cfg.Cache.Dir, log)
	}
}
