package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/tradeschema"
	"github.com/lychee-technology/tradeschema/factory"
	"github.com/lychee-technology/tradeschema/internal"
	"go.uber.org/zap"
)

type options struct {
	db           tradeschema.DatabaseConfig
	dryRun       bool
	purge        bool
	count        int
	chunkSize    int
	seed         int64
	seedProvided bool
}

// discardWriter accepts every entry without storing it.
type discardWriter struct{}

func (discardWriter) Upsert(context.Context, *tradeschema.PriceEntry) error       { return nil }
func (discardWriter) UpsertMany(context.Context, []*tradeschema.PriceEntry) error { return nil }

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	opts := parseFlags()
	ctx := context.Background()

	svc, err := factory.NewSchemaService(tradeschema.DefaultConfig())
	if err != nil {
		sugar.Fatalf("failed to build schema registry: %v", err)
	}

	var writer internal.PricelistWriter = discardWriter{}
	if !opts.dryRun {
		pool, err := factory.NewPricelistPool(ctx, opts.db)
		if err != nil {
			sugar.Fatalf("failed to create connection pool: %v", err)
		}
		defer pool.Close()

		repo, err := factory.NewPricelistRepository(ctx, pool, opts.db)
		if err != nil {
			sugar.Fatalf("failed to prepare pricelist table: %v", err)
		}
		if opts.purge {
			table := pgx.Identifier{opts.db.PricelistTable}.Sanitize()
			if _, err := pool.Exec(ctx, "TRUNCATE "+table); err != nil {
				sugar.Fatalf("failed to purge %s: %v", opts.db.PricelistTable, err)
			}
			sugar.Infof("Cleared existing rows in %s", opts.db.PricelistTable)
		}
		writer = repo
	}

	if !opts.seedProvided {
		sugar.Infof("Using random seed %d", opts.seed)
	}
	random := rand.New(rand.NewSource(opts.seed))

	entries := buildPricelist(random, opts.count)
	docs, err := chunkDocuments(entries, opts.chunkSize)
	if err != nil {
		sugar.Fatalf("failed to encode pricelist: %v", err)
	}

	ingestor := internal.NewPricelistIngestor(svc.Validator, writer)
	start := time.Now()
	accepted := 0
	for i, doc := range docs {
		result, err := ingestor.Ingest(ctx, doc)
		if err != nil {
			sugar.Fatalf("chunk %d failed: %v", i, err)
		}
		if !result.Valid() {
			sugar.Fatalf("chunk %d rejected: %s", i, tradeschema.NewValidationErrors("pricelist", result.Violations).Report(10))
		}
		accepted += len(result.Accepted)
	}
	elapsed := time.Since(start)

	sugar.Infow("pricelist benchmark complete",
		"entries", accepted,
		"chunks", len(docs),
		"dryRun", opts.dryRun,
		"elapsed", elapsed,
		"entriesPerSecond", fmt.Sprintf("%.0f", float64(accepted)/elapsed.Seconds()),
	)
}

func parseFlags() options {
	var opts options
	opts.db = tradeschema.DefaultConfig().Database

	flag.StringVar(&opts.db.Host, "db-host", getenvDefault("DB_HOST", opts.db.Host), "database host")
	flag.IntVar(&opts.db.Port, "db-port", getenvDefaultInt("DB_PORT", opts.db.Port), "database port")
	flag.StringVar(&opts.db.Database, "db-name", getenvDefault("DB_NAME", "tradeschema"), "database name")
	flag.StringVar(&opts.db.Username, "db-user", getenvDefault("DB_USER", "postgres"), "database user")
	flag.StringVar(&opts.db.Password, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flag.StringVar(&opts.db.SSLMode, "db-ssl-mode", getenvDefault("DB_SSL_MODE", opts.db.SSLMode), "database sslmode")
	flag.StringVar(&opts.db.PricelistTable, "pricelist-table", getenvDefault("PRICELIST_TABLE", "pricelist_benchmark"), "pricelist table")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "validate only, skip the database")
	flag.BoolVar(&opts.purge, "purge", false, "truncate the pricelist table before seeding")
	flag.IntVar(&opts.count, "entries", 100*1000, "number of pricelist entries to generate")
	flag.IntVar(&opts.chunkSize, "chunk-size", 500, "entries per ingested document")
	seed := flag.Int64("seed", 0, "random seed (0 uses current time)")

	flag.Parse()

	if *seed == 0 {
		opts.seed = time.Now().UnixNano()
	} else {
		opts.seed = *seed
		opts.seedProvided = true
	}

	if opts.chunkSize < 1 {
		opts.chunkSize = 1
	}
	if opts.count < 0 {
		fmt.Fprintln(os.Stderr, "entry count must be non-negative")
		os.Exit(1)
	}

	return opts
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvDefaultInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
