package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lychee-technology/tradeschema"
	"github.com/lychee-technology/tradeschema/factory"
	"github.com/lychee-technology/tradeschema/internal"
	"go.uber.org/zap"
)

// healthCheck reports whether a dependency is reachable.
type healthCheck func(ctx context.Context) error

// Server represents the HTTP server over the schema service and pricelist store
type Server struct {
	config    *tradeschema.Config
	schemas   *factory.SchemaService
	pricelist tradeschema.PricelistStore  // nil when no database is configured
	ingestor  *internal.PricelistIngestor // nil when no database is configured
	checks    map[string]healthCheck
	mux       *http.ServeMux
}

// NewServer creates a new Server instance
func NewServer(config *tradeschema.Config, schemas *factory.SchemaService) *Server {
	return &Server{
		config:  config,
		schemas: schemas,
		checks:  make(map[string]healthCheck),
		mux:     http.NewServeMux(),
	}
}

// WithPricelist enables the pricelist routes.
func (s *Server) WithPricelist(store tradeschema.PricelistStore, ingestor *internal.PricelistIngestor) *Server {
	s.pricelist = store
	s.ingestor = ingestor
	return s
}

// AddHealthCheck registers a dependency check reported by /healthz.
func (s *Server) AddHealthCheck(name string, check healthCheck) {
	s.checks[name] = check
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/sku/{sku}", s.handleCheckSKU)
	s.mux.HandleFunc("POST /api/v1/validate/{schemaID}", s.handleValidate)
	s.mux.HandleFunc("GET /api/v1/schemas", s.handleListSchemas)
	s.mux.HandleFunc("GET /api/v1/schemas/{id}", s.handleGetSchema)
	s.mux.HandleFunc("GET /api/v1/schemas/{id}/jsonschema", s.handleExportSchema)
	s.mux.HandleFunc("PUT /api/v1/pricelist", s.handleIngestPricelist)
	s.mux.HandleFunc("GET /api/v1/pricelist", s.handleListPricelist)
	s.mux.HandleFunc("GET /api/v1/pricelist/{sku}", s.handleGetPrice)
	s.mux.HandleFunc("DELETE /api/v1/pricelist/{sku}", s.handleDeletePrice)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(s.config.Server.Port),
		Handler:      s.mux,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("starting server", "port", s.config.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	zap.S().Infow("shutting down server", "timeout", s.config.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	_ = godotenv.Load()

	config := loadConfig()

	logger, err := factory.NewLogger(config.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	if err := config.Validate(); err != nil {
		sugar.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schemas, err := factory.NewSchemaService(config)
	if err != nil {
		sugar.Fatalf("failed to build schema registry: %v", err)
	}

	server := NewServer(config, schemas)

	if config.Database.Database != "" {
		pool, err := factory.NewPricelistPool(ctx, config.Database)
		if err != nil {
			sugar.Fatalf("failed to create database pool: %v", err)
		}
		defer pool.Close()

		repo, err := factory.NewPricelistRepository(ctx, pool, config.Database)
		if err != nil {
			sugar.Fatalf("failed to prepare pricelist table: %v", err)
		}
		server.WithPricelist(repo, factory.NewPricelistIngestor(schemas, repo))
		server.AddHealthCheck("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
	} else {
		sugar.Warn("DB_NAME not set, pricelist routes are disabled")
	}

	if bucket := config.Storage.Bucket; bucket != "" {
		client, err := factory.NewS3Client(ctx, config.Storage)
		if err != nil {
			sugar.Fatalf("failed to create s3 client: %v", err)
		}
		server.AddHealthCheck("s3", func(ctx context.Context) error {
			return internal.S3HealthCheck(ctx, client, bucket, 2*time.Second)
		})
	}

	if config.Registry.ReloadOnSignal {
		go reloadOnHangup(ctx, schemas)
	}

	server.RegisterRoutes()
	if err := server.Run(ctx); err != nil {
		sugar.Fatalf("server error: %v", err)
	}
}

// reloadOnHangup rebuilds the schema registry on every SIGHUP.
func reloadOnHangup(ctx context.Context, schemas *factory.SchemaService) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := schemas.Reload(); err != nil {
				zap.S().Errorw("schema reload failed", "error", err)
			}
		}
	}
}

// loadConfig overlays environment variables on the default configuration.
func loadConfig() *tradeschema.Config {
	config := tradeschema.DefaultConfig()

	config.Registry.DuplicatePolicy = tradeschema.DuplicatePolicy(getEnv("SCHEMA_DUPLICATE_POLICY", string(config.Registry.DuplicatePolicy)))
	config.Registry.StrictReferences = getEnvBool("SCHEMA_STRICT_REFERENCES", config.Registry.StrictReferences)
	config.Registry.SchemaDirectory = getEnv("SCHEMA_DIR", "")
	config.Registry.ReloadOnSignal = getEnvBool("SCHEMA_RELOAD_ON_SIGHUP", true)
	config.Registry.FailOnShadowedIDs = getEnvBool("SCHEMA_FAIL_ON_SHADOWED", false)

	config.Validation.MaxDepth = getEnvInt("VALIDATION_MAX_DEPTH", config.Validation.MaxDepth)
	config.Validation.MaxViolations = getEnvInt("VALIDATION_MAX_VIOLATIONS", config.Validation.MaxViolations)
	config.Validation.MaxDocumentSize = getEnvInt("VALIDATION_MAX_DOCUMENT_BYTES", config.Validation.MaxDocumentSize)
	config.Validation.CrossCheck = getEnvBool("VALIDATION_CROSS_CHECK", false)

	config.Database.Host = getEnv("DB_HOST", config.Database.Host)
	config.Database.Port = getEnvInt("DB_PORT", config.Database.Port)
	config.Database.Database = getEnv("DB_NAME", "")
	config.Database.Username = getEnv("DB_USER", "postgres")
	config.Database.Password = getEnv("DB_PASSWORD", "")
	config.Database.SSLMode = getEnv("DB_SSL_MODE", config.Database.SSLMode)
	config.Database.MaxConnections = getEnvInt("DB_MAX_CONNECTIONS", config.Database.MaxConnections)
	config.Database.MinConnections = getEnvInt("DB_MIN_CONNECTIONS", config.Database.MinConnections)
	config.Database.ConnMaxLifetime = getEnvSeconds("DB_CONN_MAX_LIFETIME_SECONDS", config.Database.ConnMaxLifetime)
	config.Database.ConnMaxIdleTime = getEnvSeconds("DB_CONN_MAX_IDLE_TIME_SECONDS", config.Database.ConnMaxIdleTime)
	config.Database.Timeout = getEnvSeconds("DB_TIMEOUT_SECONDS", config.Database.Timeout)
	config.Database.PricelistTable = getEnv("PRICELIST_TABLE", config.Database.PricelistTable)
	config.Database.UseIAM = getEnvBool("DB_USE_IAM", false)
	config.Database.AWSRegion = getEnv("DB_AWS_REGION", getEnv("AWS_REGION", ""))

	config.Storage.Region = getEnv("S3_REGION", getEnv("AWS_REGION", config.Storage.Region))
	config.Storage.Bucket = getEnv("S3_BUCKET", "")
	config.Storage.Prefix = getEnv("S3_PREFIX", "")
	config.Storage.Endpoint = getEnv("S3_ENDPOINT", "")
	config.Storage.AccessKeyID = getEnv("S3_ACCESS_KEY_ID", "")
	config.Storage.SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", "")
	config.Storage.UsePathStyle = getEnvBool("S3_USE_PATH_STYLE", false)

	config.Logging.Level = getEnv("LOG_LEVEL", config.Logging.Level)
	config.Logging.Format = getEnv("LOG_FORMAT", config.Logging.Format)
	config.Logging.Development = getEnvBool("LOG_DEVELOPMENT", false)
	config.Logging.LogValidDocuments = getEnvBool("LOG_VALID_DOCUMENTS", false)
	config.Logging.LogViolationDetails = getEnvBool("LOG_VIOLATION_DETAILS", config.Logging.LogViolationDetails)

	config.Server.Port = getEnvInt("PORT", config.Server.Port)
	config.Server.ReadTimeout = getEnvSeconds("SERVER_READ_TIMEOUT_SECONDS", config.Server.ReadTimeout)
	config.Server.WriteTimeout = getEnvSeconds("SERVER_WRITE_TIMEOUT_SECONDS", config.Server.WriteTimeout)
	config.Server.ShutdownTimeout = getEnvSeconds("SERVER_SHUTDOWN_TIMEOUT_SECONDS", config.Server.ShutdownTimeout)

	return config
}
