package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("failed to set up logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var runErr error
	switch os.Args[1] {
	case "check-sku":
		runErr = runCheckSKU(os.Args[2:], os.Stdin, os.Stdout)
	case "validate":
		runErr = runValidate(ctx, os.Args[2:], os.Stdin, os.Stdout)
	case "export-schema":
		runErr = runExportSchema(ctx, os.Args[2:], os.Stdout)
	case "publish-pricelist":
		runErr = runPublishPricelist(ctx, os.Args[2:], os.Stdout)
	case "init-db":
		runErr = runInitDB(ctx, os.Args[2:], os.Stdout)
	default:
		sugar.Errorf("unknown command %q", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if runErr != nil {
		if errors.Is(runErr, errRejected) {
			os.Exit(2)
		}
		sugar.Fatalf("%s: %v", os.Args[1], runErr)
	}
}

func printUsage() {
	logger := zap.S()
	logger.Info("Usage: tradeschema-tools <command> [options]")
	logger.Info("")
	logger.Info("Commands:")
	logger.Info("  check-sku           Check item identity strings from -sku or stdin lines")
	logger.Info("  validate            Validate a JSON document (path, file:// or s3://) against a schema id")
	logger.Info("  export-schema       Export a schema id and its references as a JSON Schema document")
	logger.Info("  publish-pricelist   Validate a pricelist document and publish it to a file or s3:// destination")
	logger.Info("  init-db             Create the pricelist table in PostgreSQL")
}
