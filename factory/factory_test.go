package factory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lychee-technology/tradeschema"
	"github.com/lychee-technology/tradeschema/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeSchema(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(tradeschema.LoggingConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	dev, err := NewLogger(tradeschema.LoggingConfig{Development: true})
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger(tradeschema.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestBuildRegistry_CatalogOnly(t *testing.T) {
	registry, err := BuildRegistry(tradeschema.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, len(catalog.Definitions()), registry.Len())
	assert.True(t, registry.Has(catalog.OptionsRoot))
}

func TestBuildRegistry_SchemaDirectory(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "bot-tag.json", `{"type": "string", "maxLength": 16}`)

	cfg := tradeschema.DefaultConfig()
	cfg.Registry.SchemaDirectory = dir

	registry, err := BuildRegistry(cfg)
	require.NoError(t, err)
	assert.True(t, registry.Has("bot-tag"))
	assert.Equal(t, len(catalog.Definitions())+1, registry.Len())

	cfg.Registry.SchemaDirectory = filepath.Join(dir, "missing")
	_, err = BuildRegistry(cfg)
	assert.Error(t, err)
}

func TestBuildRegistry_DuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "sku.json", `{"type": "string", "maxLength": 64}`)

	cfg := tradeschema.DefaultConfig()
	cfg.Registry.SchemaDirectory = dir

	_, err := BuildRegistry(cfg)
	require.Error(t, err)
	assert.True(t, tradeschema.IsSchemaError(err, tradeschema.SchemaErrorTypeDuplicateID))

	cfg.Registry.DuplicatePolicy = tradeschema.DuplicateShadow
	registry, err := BuildRegistry(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{catalog.SKU}, registry.Shadowed())

	cfg.Registry.FailOnShadowedIDs = true
	_, err = BuildRegistry(cfg)
	require.Error(t, err)
	assert.True(t, tradeschema.IsSchemaError(err, tradeschema.SchemaErrorTypeDuplicateID))
}

func TestBuildRegistry_UnresolvedReference(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "bot-extras.json", `{"type": "object", "properties": {"tag": {"$ref": "bot-tag"}}}`)

	cfg := tradeschema.DefaultConfig()
	cfg.Registry.SchemaDirectory = dir

	_, err := BuildRegistry(cfg)
	require.Error(t, err)
	assert.True(t, tradeschema.IsSchemaError(err, tradeschema.SchemaErrorTypeUnresolvedRef))

	cfg.Registry.StrictReferences = false
	registry, err := BuildRegistry(cfg)
	require.NoError(t, err)
	assert.True(t, registry.Has("bot-extras"))
}

func TestNewSchemaService(t *testing.T) {
	cfg := tradeschema.DefaultConfig()
	cfg.Validation.CrossCheck = true

	svc, err := NewSchemaService(cfg)
	require.NoError(t, err)
	require.NotNil(t, svc.CrossCheck)

	ctx := context.Background()
	violations, err := svc.Validator.Validate(ctx, catalog.SKU, "5021;6")
	require.NoError(t, err)
	assert.Empty(t, violations)
	assert.NoError(t, svc.CrossCheck.Validate(ctx, catalog.SKU, "5021;6"))

	cfg.Validation.CrossCheck = false
	plain, err := NewSchemaService(cfg)
	require.NoError(t, err)
	assert.Nil(t, plain.CrossCheck)
}

func TestSchemaService_Reload(t *testing.T) {
	dir := t.TempDir()
	cfg := tradeschema.DefaultConfig()
	cfg.Registry.SchemaDirectory = dir

	svc, err := NewSchemaService(cfg)
	require.NoError(t, err)
	before := svc.Holder.Fingerprint()

	writeSchema(t, dir, "bot-tag.json", `{"type": "string", "maxLength": 4}`)
	require.NoError(t, svc.Reload())
	assert.NotEqual(t, before, svc.Holder.Fingerprint())

	violations, err := svc.Validator.Validate(context.Background(), "bot-tag", "too long")
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, tradeschema.ReasonLengthExceeded, violations[0].Reason)

	current := svc.Holder.Fingerprint()
	writeSchema(t, dir, "broken.json", `{"type": "object", "properties": {"x": {"$ref": "nowhere"}}}`)
	require.Error(t, svc.Reload())
	assert.Equal(t, current, svc.Holder.Fingerprint(), "a failed reload keeps the served registry")
}

func TestNewDocumentStore(t *testing.T) {
	ctx := context.Background()

	local, err := NewDocumentStore(ctx, tradeschema.DefaultConfig())
	require.NoError(t, err)
	_, err = local.Fetch(ctx, "s3://prices/pricelist.json")
	assert.Error(t, err, "s3 is disabled without a bucket")

	cfg := tradeschema.DefaultConfig()
	cfg.Storage.Bucket = "prices"
	cfg.Storage.AccessKeyID = "key"
	_, err = NewDocumentStore(ctx, cfg)
	assert.Error(t, err, "static credentials need both halves")

	cfg.Storage.SecretAccessKey = "secret"
	cfg.Storage.Endpoint = "http://localhost:9000"
	cfg.Storage.UsePathStyle = true
	store, err := NewDocumentStore(ctx, cfg)
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestNewS3Client(t *testing.T) {
	ctx := context.Background()

	client, err := NewS3Client(ctx, tradeschema.StorageConfig{Bucket: "prices", Region: "us-east-1", UsePathStyle: true})
	require.NoError(t, err)
	assert.True(t, client.Options().UsePathStyle)
	assert.Equal(t, "us-east-1", client.Options().Region)

	_, err = NewS3Client(ctx, tradeschema.StorageConfig{Bucket: "prices"})
	assert.Error(t, err, "a bucket needs a region or an endpoint")
}

func TestLoadAWSConfig(t *testing.T) {
	awsCfg, err := LoadAWSConfig(context.Background(), tradeschema.StorageConfig{
		Region:          "eu-west-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}

func TestNewPricelistPool_InvalidConfig(t *testing.T) {
	cfg := tradeschema.DefaultConfig().Database
	cfg.Host = ""

	_, err := NewPricelistPool(context.Background(), cfg)
	assert.Error(t, err)

	cfg = tradeschema.DefaultConfig().Database
	cfg.UseIAM = true
	_, err = NewPricelistPool(context.Background(), cfg)
	assert.Error(t, err, "iam auth needs a region")
}
