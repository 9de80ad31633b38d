package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/plumeworks/plume/internal/database"
	"github.com/plumeworks/plume/internal/setup/config"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	// Setup dependencies
	db, logger, err := setupClient()
	if err != nil {
		return fmt.Errorf("failed to setup database client: %w", err)
	}
	defer db.Close()

	app := &cli.Command{
		Name:  "db",
		Usage: "Database maintenance tool",
		Commands: []*cli.Command{
			{
				Name:  "recount",
				Usage: "Rebuild the denormalized user counters",
				Action: func(ctx context.Context, _ *cli.Command) error {
					if err := db.Service().User().RecountAll(ctx); err != nil {
						return err
					}

					logger.Info("Successfully recounted user counters")
					return nil
				},
			},
			{
				Name:  "evict",
				Usage: "Evict feed index entries older than the retention window",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Value: 30,
						Usage: "Retention window in days",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cutoff := time.Now().AddDate(0, 0, -int(c.Int("days")))

					evicted, err := db.Model().Feed().EvictBefore(ctx, cutoff)
					if err != nil {
						return err
					}

					logger.Info("Successfully evicted aged feed entries",
						zap.Int64("evicted", evicted),
						zap.Time("cutoff", cutoff),
					)
					return nil
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// setupClient initializes the database connection.
func setupClient() (database.Client, *zap.Logger, error) {
	// Load full configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Create development logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	// Connect to database
	db, err := database.NewConnection(context.Background(), &cfg.Common.PostgreSQL, database.Options{}, logger, false)
	if err != nil {
		return nil, logger, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, logger, nil
}
