package tradeschema

import (
	"time"
)

// Config consolidates settings for the registry, the validation engine and
// the pricelist storage around them.
type Config struct {
	Registry   RegistryConfig   `json:"registry"`
	Validation ValidationConfig `json:"validation"`
	Database   DatabaseConfig   `json:"database"`
	Storage    StorageConfig    `json:"storage"`
	Logging    LoggingConfig    `json:"logging"`
	Server     ServerConfig     `json:"server"`
}

// RegistryConfig controls how the schema registry is built
type RegistryConfig struct {
	DuplicatePolicy   DuplicatePolicy `json:"duplicatePolicy"`
	StrictReferences  bool            `json:"strictReferences"`
	SchemaDirectory   string          `json:"schemaDirectory"` // extra *.json definitions, optional
	ReloadOnSignal    bool            `json:"reloadOnSignal"`
	FailOnShadowedIDs bool            `json:"failOnShadowedIds"`
}

// ValidationConfig contains document validation settings
type ValidationConfig struct {
	MaxDepth        int  `json:"maxDepth"`
	MaxViolations   int  `json:"maxViolations"` // report cap only, collection is always exhaustive
	MaxDocumentSize int  `json:"maxDocumentSize"`
	CrossCheck      bool `json:"crossCheck"` // also run the JSON Schema engine
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Database        string        `json:"database"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"sslMode"`
	MaxConnections  int           `json:"maxConnections"`
	MinConnections  int           `json:"minConnections"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime"`
	Timeout         time.Duration `json:"timeout"`
	PricelistTable  string        `json:"pricelistTable"`

	// IAM authentication for Aurora DSQL. Password is ignored when enabled.
	UseIAM    bool   `json:"useIAM"`
	AWSRegion string `json:"awsRegion"`
}

// StorageConfig contains S3 document store settings
type StorageConfig struct {
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
	Endpoint        string `json:"endpoint"` // custom endpoint, e.g. MinIO
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	UsePathStyle    bool   `json:"usePathStyle"`
	PartSizeMB      int64  `json:"partSizeMB"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level               string `json:"level"`
	Format              string `json:"format"` // json or console
	Development         bool   `json:"development"`
	LogValidDocuments   bool   `json:"logValidDocuments"`
	LogViolationDetails bool   `json:"logViolationDetails"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			DuplicatePolicy:  DuplicateReject,
			StrictReferences: true,
		},
		Validation: ValidationConfig{
			MaxDepth:        64,
			MaxViolations:   100,
			MaxDocumentSize: 4 * 1024 * 1024, // 4MB
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			MaxConnections:  10,
			MinConnections:  1,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Timeout:         30 * time.Second,
			PricelistTable:  "pricelist",
		},
		Storage: StorageConfig{
			Region:     "us-east-1",
			PartSizeMB: 5,
		},
		Logging: LoggingConfig{
			Level:               "info",
			Format:              "json",
			LogViolationDetails: true,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// RegistryOptions translates the registry section into builder options.
func (c *Config) RegistryOptions() []RegistryOption {
	opts := []RegistryOption{WithDuplicatePolicy(c.Registry.DuplicatePolicy)}
	if !c.Registry.StrictReferences {
		opts = append(opts, WithLenientReferences())
	}
	return opts
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if !c.Registry.DuplicatePolicy.Valid() {
		return &ConfigError{Field: "registry.duplicatePolicy", Message: "must be 'reject' or 'shadow'"}
	}

	if c.Validation.MaxDepth <= 0 {
		return &ConfigError{Field: "validation.maxDepth", Message: "must be greater than 0"}
	}

	if c.Validation.MaxViolations < 0 {
		return &ConfigError{Field: "validation.maxViolations", Message: "must not be negative"}
	}

	if c.Database.MaxConnections <= 0 {
		return &ConfigError{Field: "database.maxConnections", Message: "must be greater than 0"}
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return &ConfigError{Field: "database.minConnections", Message: "must be less than or equal to maxConnections"}
	}

	if c.Database.PricelistTable == "" {
		return &ConfigError{Field: "database.pricelistTable", Message: "must not be empty"}
	}

	if c.Database.UseIAM && c.Database.AWSRegion == "" {
		return &ConfigError{Field: "database.awsRegion", Message: "is required when useIAM is enabled"}
	}

	if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
		return &ConfigError{Field: "storage.secretAccessKey", Message: "static credentials need both key id and secret"}
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return &ConfigError{Field: "logging.format", Message: "must be 'json' or 'console'"}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Message: "must be between 1 and 65535"}
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
