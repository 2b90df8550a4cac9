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

func runValidate(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	flags := flag.NewFlagSet("validate", flag.ContinueOnError)
	flags.SetOutput(stdout)
	flags.Usage = func() {
		fmt.Fprintln(stdout, "Usage: tradeschema-tools validate -schema ID -doc PATH|file://...|s3://bucket/key|-")
		fmt.Fprintln(stdout, "")
		fmt.Fprintln(stdout, "Options:")
		flags.PrintDefaults()
	}

	var reg registryFlags
	reg.register(flags)
	schemaID := flags.String("schema", "", "root schema id (required)")
	doc := flags.String("doc", "-", "document location, - reads stdin")
	asJSON := flags.Bool("json", false, "print the validation report as JSON")
	limit := flags.Int("max-violations", getenvDefaultInt("VALIDATION_MAX_VIOLATIONS", 100), "violations listed in text output, 0 lists all")
	crossCheck := flags.Bool("cross-check", false, "also run the exported JSON Schema and fail on disagreement")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *schemaID == "" {
		return fmt.Errorf("-schema is required")
	}

	cfg := reg.config(*doc)
	cfg.Validation.CrossCheck = *crossCheck
	svc, err := factory.NewSchemaService(cfg)
	if err != nil {
		return err
	}

	data, err := readDocument(ctx, cfg, *doc, stdin)
	if err != nil {
		return err
	}

	violations, err := svc.Validator.Validate(ctx, *schemaID, json.RawMessage(data))
	if err != nil {
		return err
	}

	if svc.CrossCheck != nil {
		engineErr := svc.CrossCheck.Validate(ctx, *schemaID, json.RawMessage(data))
		if (engineErr == nil) != (len(violations) == 0) {
			return fmt.Errorf("json schema cross-check disagrees: %d violations, engine error %v", len(violations), engineErr)
		}
	}

	report := tradeschema.NewValidationReport(*schemaID, violations)
	report.Fingerprint = fmt.Sprintf("%016x", svc.Holder.Fingerprint())
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprint(stdout, tradeschema.NewValidationErrors(*schemaID, violations).Report(*limit))
		if report.Valid {
			fmt.Fprintln(stdout)
		}
	}

	if !report.Valid {
		return errRejected
	}
	return nil
}

func readDocument(ctx context.Context, cfg *tradeschema.Config, uri string, stdin io.Reader) ([]byte, error) {
	if uri == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, int64(cfg.Validation.MaxDocumentSize)+1))
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		if len(data) > cfg.Validation.MaxDocumentSize {
			return nil, fmt.Errorf("document exceeds %d bytes", cfg.Validation.MaxDocumentSize)
		}
		return data, nil
	}
	store, err := factory.NewDocumentStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store.Fetch(ctx, uri)
}

func runExportSchema(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("export-schema", flag.ContinueOnError)
	flags.SetOutput(stdout)
	flags.Usage = func() {
		fmt.Fprintln(stdout, "Usage: tradeschema-tools export-schema -schema ID [-out PATH|s3://bucket/key]")
		fmt.Fprintln(stdout, "")
		fmt.Fprintln(stdout, "Options:")
		flags.PrintDefaults()
	}

	var reg registryFlags
	reg.register(flags)
	schemaID := flags.String("schema", "", "root schema id (required)")
	out := flags.String("out", "", "where to write the JSON Schema (defaults to stdout)")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *schemaID == "" {
		return fmt.Errorf("-schema is required")
	}

	cfg := reg.config(*out)
	registry, err := factory.BuildRegistry(cfg)
	if err != nil {
		return err
	}
	exported, err := internal.ExportJSONSchema(registry, *schemaID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(exported, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json schema: %w", err)
	}
	data = append(data, '\n')

	if *out == "" {
		_, err := stdout.Write(data)
		return err
	}
	store, err := factory.NewDocumentStore(ctx, cfg)
	if err != nil {
		return err
	}
	if err := store.PublishBytes(ctx, *out, data); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Exported %s to %s\n", *schemaID, *out)
	return nil
}
