package factory

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/tradeschema"
	"github.com/lychee-technology/tradeschema/catalog"
	"github.com/lychee-technology/tradeschema/internal"
	"go.uber.org/zap"
)

// NewLogger builds a zap logger from the logging section.
func NewLogger(cfg tradeschema.LoggingConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Format != "" {
		zcfg.Encoding = cfg.Format
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

// BuildRegistry builds the catalog plus any definitions found in
// config.Registry.SchemaDirectory.
func BuildRegistry(cfg *tradeschema.Config) (*tradeschema.Registry, error) {
	opts := append(cfg.RegistryOptions(), tradeschema.WithLogger(zap.L()))
	b := tradeschema.NewRegistryBuilder(opts...)
	if err := catalog.Register(b); err != nil {
		return nil, fmt.Errorf("failed to register catalog: %w", err)
	}

	if dir := cfg.Registry.SchemaDirectory; dir != "" {
		extra, err := internal.LoadSchemaDirectory(dir)
		if err != nil {
			return nil, err
		}
		if err := b.RegisterAll(extra...); err != nil {
			return nil, fmt.Errorf("failed to register schemas from %s: %w", dir, err)
		}
	}

	registry, err := b.Build()
	if err != nil {
		return nil, err
	}
	if shadowed := registry.Shadowed(); len(shadowed) > 0 && cfg.Registry.FailOnShadowedIDs {
		return nil, tradeschema.NewSchemaError(tradeschema.SchemaErrorTypeDuplicateID,
			fmt.Sprintf("schema ids shadowed: %v", shadowed), nil)
	}
	return registry, nil
}

// SchemaService bundles the registry holder and the validators reading it.
type SchemaService struct {
	Holder     *internal.RegistryHolder
	Validator  *internal.SchemaValidator
	CrossCheck *internal.JSONSchemaEngine // nil unless validation.crossCheck is set

	config *tradeschema.Config
}

// NewSchemaService builds the registry and the validators over it.
//
// Usage:
//
//	cfg := tradeschema.DefaultConfig()
//	svc, err := factory.NewSchemaService(cfg)
//	if err != nil {
//	    // handle error
//	}
//	violations, err := svc.Validator.Validate(ctx, catalog.OptionsRoot, doc)
func NewSchemaService(cfg *tradeschema.Config) (*SchemaService, error) {
	registry, err := BuildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	holder := internal.NewRegistryHolder(registry)
	svc := &SchemaService{
		Holder:    holder,
		Validator: internal.NewSchemaValidator(holder, internal.WithMaxDepth(cfg.Validation.MaxDepth)),
		config:    cfg,
	}
	if cfg.Validation.CrossCheck {
		svc.CrossCheck = internal.NewJSONSchemaEngine(holder)
	}

	zap.S().Infow("schema registry ready",
		"schemas", registry.Len(),
		"fingerprint", fmt.Sprintf("%016x", registry.Fingerprint()),
		"shadowed", registry.Shadowed(),
	)
	return svc, nil
}

// Reload rebuilds the registry from the same configuration and swaps it in.
// The served registry stays in place when the rebuild fails.
func (s *SchemaService) Reload() error {
	return s.Holder.Reload(func() (*tradeschema.Registry, error) {
		return BuildRegistry(s.config)
	})
}

// LoadAWSConfig loads the default AWS configuration, applying the storage
// section's region and static credentials when set.
func LoadAWSConfig(ctx context.Context, cfg tradeschema.StorageConfig) (aws.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	if cfg.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(cfg.Endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// NewDocumentStore creates the document store. S3 URIs are enabled only when
// a bucket is configured.
func NewDocumentStore(ctx context.Context, cfg *tradeschema.Config) (*internal.ObjectDocumentStore, error) {
	opts := []internal.DocumentStoreOption{
		internal.WithMaxDocumentSize(int64(cfg.Validation.MaxDocumentSize)),
	}
	if cfg.Storage.Bucket == "" {
		return internal.NewObjectDocumentStore(opts...), nil
	}

	client, err := NewS3Client(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.Storage.PartSizeMB > 0 {
			u.PartSize = cfg.Storage.PartSizeMB * 1024 * 1024
		}
	})

	opts = append(opts,
		internal.WithS3(client, uploader),
		internal.WithCircuitBreaker(internal.NewCircuitBreaker(5, time.Minute, 30*time.Second)),
	)
	return internal.NewObjectDocumentStore(opts...), nil
}

// NewS3Client builds the S3 client shared by the document store and the
// bucket health check.
func NewS3Client(ctx context.Context, cfg tradeschema.StorageConfig) (*s3.Client, error) {
	if err := internal.ValidateS3Config(cfg); err != nil {
		return nil, err
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewPricelistPool creates a pgx pool for the pricelist table. With UseIAM a
// fresh Aurora DSQL auth token is generated for every new connection.
func NewPricelistPool(ctx context.Context, cfg tradeschema.DatabaseConfig) (*pgxpool.Pool, error) {
	if err := internal.ValidatePostgresConfig(cfg); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(internal.PostgresDSN(cfg, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.Timeout

	if cfg.UseIAM {
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		endpoint := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		poolConfig.BeforeConnect = func(ctx context.Context, cc *pgx.ConnConfig) error {
			token, err := auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials)
			if err != nil {
				return fmt.Errorf("generate dsql auth token: %w", err)
			}
			cc.Password = token
			return nil
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// NewPricelistRepository wraps pool in a repository and makes sure the
// pricelist table exists.
func NewPricelistRepository(ctx context.Context, pool *pgxpool.Pool, cfg tradeschema.DatabaseConfig) (*internal.PostgresPricelistRepository, error) {
	repo := internal.NewPostgresPricelistRepository(pool, cfg.PricelistTable)
	if err := repo.EnsureTable(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// NewPricelistIngestor wires the schema service and a repository together.
func NewPricelistIngestor(svc *SchemaService, repo internal.PricelistWriter) *internal.PricelistIngestor {
	return internal.NewPricelistIngestor(svc.Validator, repo)
}
