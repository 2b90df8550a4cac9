package main

import (
	"flag"
	"os"
	"strconv"

	"github.com/lychee-technology/tradeschema"
	"github.com/lychee-technology/tradeschema/internal"
)

// registryFlags are the registry options shared by commands that build one.
type registryFlags struct {
	schemaDir string
	lenient   bool
	shadow    bool
}

func (f *registryFlags) register(flags *flag.FlagSet) {
	flags.StringVar(&f.schemaDir, "schema-dir", getenvDefault("SCHEMA_DIR", ""), "directory with extra schema definitions (optional)")
	flags.BoolVar(&f.lenient, "lenient-refs", false, "allow references that no schema defines")
	flags.BoolVar(&f.shadow, "shadow-duplicates", false, "let later definitions replace earlier ones with the same id")
}

// config builds a configuration from the flags and the S3_* environment.
// docURIs that point at S3 enable the document store for their bucket.
func (f *registryFlags) config(docURIs ...string) *tradeschema.Config {
	cfg := tradeschema.DefaultConfig()
	cfg.Registry.SchemaDirectory = f.schemaDir
	cfg.Registry.StrictReferences = !f.lenient
	if f.shadow {
		cfg.Registry.DuplicatePolicy = tradeschema.DuplicateShadow
	}

	cfg.Storage.Region = getenvDefault("S3_REGION", getenvDefault("AWS_REGION", cfg.Storage.Region))
	cfg.Storage.Bucket = getenvDefault("S3_BUCKET", "")
	cfg.Storage.Endpoint = getenvDefault("S3_ENDPOINT", "")
	cfg.Storage.AccessKeyID = getenvDefault("S3_ACCESS_KEY_ID", "")
	cfg.Storage.SecretAccessKey = getenvDefault("S3_SECRET_ACCESS_KEY", "")
	cfg.Storage.UsePathStyle = getenvDefault("S3_USE_PATH_STYLE", "") == "true"

	for _, uri := range docURIs {
		loc, err := internal.ParseDocumentURI(uri)
		if err == nil && loc.Scheme == "s3" && cfg.Storage.Bucket == "" {
			cfg.Storage.Bucket = loc.Bucket
		}
	}
	return cfg
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
