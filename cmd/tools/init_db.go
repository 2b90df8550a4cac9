package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/lychee-technology/tradeschema"
	"github.com/lychee-technology/tradeschema/factory"
	"github.com/lychee-technology/tradeschema/internal"
)

func runInitDB(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("init-db", flag.ContinueOnError)
	flags.SetOutput(stdout)
	flags.Usage = func() {
		fmt.Fprintln(stdout, "Usage: tradeschema-tools init-db [options]")
		fmt.Fprintln(stdout, "")
		fmt.Fprintln(stdout, "Options:")
		flags.PrintDefaults()
	}

	cfg := tradeschema.DefaultConfig().Database
	flags.StringVar(&cfg.Host, "db-host", getenvDefault("DB_HOST", cfg.Host), "database host")
	flags.IntVar(&cfg.Port, "db-port", getenvDefaultInt("DB_PORT", cfg.Port), "database port")
	flags.StringVar(&cfg.Database, "db-name", getenvDefault("DB_NAME", "tradeschema"), "database name")
	flags.StringVar(&cfg.Username, "db-user", getenvDefault("DB_USER", "postgres"), "database user")
	flags.StringVar(&cfg.Password, "db-password", getenvDefault("DB_PASSWORD", "postgres"), "database password")
	flags.StringVar(&cfg.SSLMode, "db-ssl-mode", getenvDefault("DB_SSL_MODE", cfg.SSLMode), "database sslmode")
	flags.StringVar(&cfg.PricelistTable, "pricelist-table", getenvDefault("PRICELIST_TABLE", cfg.PricelistTable), "pricelist table name")
	flags.BoolVar(&cfg.UseIAM, "db-use-iam", false, "authenticate with an Aurora DSQL IAM token")
	flags.StringVar(&cfg.AWSRegion, "aws-region", getenvDefault("AWS_REGION", ""), "region used for IAM tokens")
	preflight := flags.Duration("preflight-timeout", 5*time.Second, "timeout of the connectivity check run before creating tables")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	// IAM passwords are minted per connection by the pool, so only
	// password logins can be checked up front.
	if !cfg.UseIAM {
		if err := internal.ValidatePostgresConfig(cfg); err != nil {
			return err
		}
		if err := internal.PostgresHealthCheck(ctx, internal.PostgresDSN(cfg, ""), *preflight); err != nil {
			return fmt.Errorf("database preflight failed: %w", err)
		}
	}

	pool, err := factory.NewPricelistPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if _, err := factory.NewPricelistRepository(ctx, pool, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Created pricelist table: %s\n", cfg.PricelistTable)
	return nil
}
