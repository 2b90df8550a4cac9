package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/lychee-technology/tradeschema"
	"github.com/lychee-technology/tradeschema/factory"
	"github.com/lychee-technology/tradeschema/internal"
)

// documentWriter publishes accepted pricelist entries as one JSON array.
type documentWriter struct {
	store *internal.ObjectDocumentStore
	dest  string
}

func (w *documentWriter) Upsert(ctx context.Context, entry *tradeschema.PriceEntry) error {
	return w.UpsertMany(ctx, []*tradeschema.PriceEntry{entry})
}

func (w *documentWriter) UpsertMany(ctx context.Context, entries []*tradeschema.PriceEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pricelist: %w", err)
	}
	return w.store.PublishBytes(ctx, w.dest, append(data, '\n'))
}

func runPublishPricelist(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("publish-pricelist", flag.ContinueOnError)
	flags.SetOutput(stdout)
	flags.Usage = func() {
		fmt.Fprintln(stdout, "Usage: tradeschema-tools publish-pricelist -doc PATH|s3://... -dest PATH|s3://...")
		fmt.Fprintln(stdout, "")
		fmt.Fprintln(stdout, "Nothing is written when the document has violations.")
		fmt.Fprintln(stdout, "")
		fmt.Fprintln(stdout, "Options:")
		flags.PrintDefaults()
	}

	var reg registryFlags
	reg.register(flags)
	doc := flags.String("doc", "", "pricelist document, one entry or an array (required)")
	dest := flags.String("dest", "", "destination of the published pricelist (required)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *doc == "" || *dest == "" {
		return fmt.Errorf("-doc and -dest are required")
	}

	cfg := reg.config(*doc, *dest)
	svc, err := factory.NewSchemaService(cfg)
	if err != nil {
		return err
	}
	store, err := factory.NewDocumentStore(ctx, cfg)
	if err != nil {
		return err
	}

	data, err := store.Fetch(ctx, *doc)
	if err != nil {
		return err
	}

	ingestor := factory.NewPricelistIngestor(svc, &documentWriter{store: store, dest: *dest})
	result, err := ingestor.Ingest(ctx, data)
	if err != nil {
		return err
	}
	if !result.Valid() {
		errs := tradeschema.NewValidationErrors("pricelist", result.Violations)
		fmt.Fprint(stdout, errs.Report(0))
		return errRejected
	}

	fmt.Fprintf(stdout, "Published %d entries to %s (batch %s)\n", len(result.Accepted), *dest, result.BatchID)
	return nil
}
