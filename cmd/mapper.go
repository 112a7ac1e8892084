package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/biocirv/agstats-cli/internal/nass"
	"github.com/biocirv/agstats-cli/internal/refcache"
)

var mapperCmd = &cobra.Command{
	Use:   "mapper",
	Short: "Resource to commodity mapping",
	Long:  "Matches local agricultural resource names against the USDA commodity taxonomy: fetch the reference list, auto-match, review the middle band, and persist approved mappings.",
}

func init() {
	rootCmd.AddCommand(mapperCmd)
}

// storePool creates a pgxpool.Pool from the configured DSN.
func storePool(ctx context.Context) (*pgxpool.Pool, error) {
	if err := cfg.RequireDatabaseURL(); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "store: create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping database")
	}

	fmt.Println("Connected to database")
	return pool, nil
}

// nassClient builds a QuickStats client from config.
func nassClient() (*nass.Client, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	return nass.NewClient(cfg.NASS.APIKey, nass.Options{
		BaseURL:        cfg.NASS.BaseURL,
		Timeout:        time.Duration(cfg.NASS.TimeoutSecs) * time.Second,
		MaxRetries:     cfg.NASS.MaxRetries,
		RequestsPerSec: cfg.NASS.RequestsPerSec,
	}), nil
}

// commodityCache builds the snapshot cache over the QuickStats client.
func commodityCache() (*refcache.Cache, error) {
	client, err := nassClient()
	if err != nil {
		return nil, err
	}
	return refcache.New(cfg.Cache.Dir, client, refcache.Options{
		MaxAge:     time.Duration(cfg.Cache.MaxAgeHours) * time.Hour,
		AllowStale: cfg.Cache.AllowStale,
	}), nil
}
