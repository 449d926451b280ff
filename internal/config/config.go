package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"qcgallery/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Metadata   MetadataConfig
	Records    RecordsConfig
	Auth       AuthConfig
	Images     ImageConfig
	Server     ServerConfig
	Query      QueryConfig
	Connection ConnectionConfig
	LogLevel   string
}

// MetadataConfig locates the relational store holding factory reference data.
// The password is the OAuth access token, issued per connection.
type MetadataConfig struct {
	Host         string
	Port         int
	Database     string
	User         string
	SSLMode      string
	FactoryTable string
}

// RecordsConfig locates the analytical engine holding inspection rows.
// DSN may contain {token}, replaced with the access token on every issuance.
type RecordsConfig struct {
	Driver          string
	DSN             string
	InspectionTable string
}

// AuthConfig selects how access tokens are obtained. A static token wins over
// client credentials when both are set.
type AuthConfig struct {
	Host         string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	StaticToken  string
}

// ImageConfig configures the object store and image cache
type ImageConfig struct {
	Backend       string // "volumes" or "s3"
	AllowedPrefix string
	CacheTTL      time.Duration
	MaxConcurrent int64
	S3Bucket      string
	S3Region      string
	RedisAddr     string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// QueryConfig holds query policy settings
type QueryConfig struct {
	DefaultPageSize int
	TotalPolicy     string // "filtered" or "grand"
	OptionsTTL      time.Duration
}

// ConnectionConfig holds credential lifecycle settings
type ConnectionConfig struct {
	Lifetime       time.Duration
	ConnectTimeout time.Duration
}

const (
	BackendVolumes = "volumes"
	BackendS3      = "s3"

	TotalPolicyFiltered = "filtered"
	TotalPolicyGrand    = "grand"
)

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Metadata:   loadMetadataConfig(),
		Records:    loadRecordsConfig(),
		Auth:       loadAuthConfig(),
		Images:     loadImageConfig(),
		Server:     loadServerConfig(),
		Query:      loadQueryConfig(),
		Connection: loadConnectionConfig(),
		LogLevel:   getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	// Validate required fields
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadMetadataConfig() MetadataConfig {
	return MetadataConfig{
		Host:         getEnvOrDefault("PGHOST", ""),
		Port:         getEnvIntOrDefault("PGPORT", 5432),
		Database:     getEnvOrDefault("PGDATABASE", ""),
		User:         getEnvOrDefault("PGUSER", ""),
		SSLMode:      getEnvOrDefault("PGSSLMODE", "require"),
		FactoryTable: getEnvOrDefault("QC_FACTORY_TABLE", "opm.factories_synched"),
	}
}

func loadRecordsConfig() RecordsConfig {
	return RecordsConfig{
		Driver:          getEnvOrDefault("QC_RECORDS_DRIVER", "postgres"),
		DSN:             getEnvOrDefault("QC_RECORDS_DSN", ""),
		InspectionTable: getEnvOrDefault("QC_INSPECTION_TABLE", "serverless_opm_catalog.opm.inspections"),
	}
}

func loadAuthConfig() AuthConfig {
	host := strings.TrimSuffix(getEnvOrDefault("DATABRICKS_HOST", ""), "/")
	tokenURL := getEnvOrDefault("QC_TOKEN_URL", "")
	if tokenURL == "" && host != "" {
		tokenURL = host + "/oidc/v1/token"
	}
	return AuthConfig{
		Host:         host,
		ClientID:     getEnvOrDefault("DATABRICKS_CLIENT_ID", ""),
		ClientSecret: getEnvOrDefault("DATABRICKS_CLIENT_SECRET", ""),
		TokenURL:     tokenURL,
		Scopes:       getEnvListOrDefault("QC_TOKEN_SCOPES", []string{"all-apis"}),
		StaticToken:  getEnvOrDefault("DATABRICKS_TOKEN", ""),
	}
}

func loadImageConfig() ImageConfig {
	return ImageConfig{
		Backend:       getEnvOrDefault("QC_IMAGE_BACKEND", BackendVolumes),
		AllowedPrefix: getEnvOrDefault("QC_IMAGE_PREFIX", "/Volumes/serverless_opm_catalog/opm/quality/images-highres/"),
		CacheTTL:      getEnvDurationOrDefault("QC_IMAGE_CACHE_TTL", time.Hour),
		MaxConcurrent: int64(getEnvIntOrDefault("QC_IMAGE_MAX_CONCURRENT", 16)),
		S3Bucket:      getEnvOrDefault("QC_S3_BUCKET", ""),
		S3Region:      getEnvOrDefault("AWS_REGION", "us-west-2"),
		RedisAddr:     getEnvOrDefault("QC_REDIS_ADDR", ""),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func loadQueryConfig() QueryConfig {
	return QueryConfig{
		DefaultPageSize: getEnvIntOrDefault("QC_PAGE_SIZE", 8),
		TotalPolicy:     strings.ToLower(getEnvOrDefault("QC_TOTAL_POLICY", TotalPolicyFiltered)),
		OptionsTTL:      getEnvDurationOrDefault("QC_OPTIONS_TTL", 5*time.Minute),
	}
}

func loadConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Lifetime:       getEnvDurationOrDefault("QC_CREDENTIAL_LIFETIME", 59*time.Minute),
		ConnectTimeout: getEnvDurationOrDefault("QC_CONNECT_TIMEOUT", 30*time.Second),
	}
}

func validateConfig(config *Config) error {
	if config.Metadata.Host == "" || config.Metadata.Database == "" || config.Metadata.User == "" {
		return errors.ConfigInvalid("PGHOST, PGDATABASE and PGUSER are required")
	}
	if config.Records.DSN == "" {
		return errors.ConfigInvalid("QC_RECORDS_DSN is required")
	}
	if config.Auth.StaticToken == "" && (config.Auth.ClientID == "" || config.Auth.ClientSecret == "" || config.Auth.TokenURL == "") {
		return errors.ConfigInvalid("either DATABRICKS_TOKEN or DATABRICKS_CLIENT_ID/DATABRICKS_CLIENT_SECRET with DATABRICKS_HOST is required")
	}
	switch config.Images.Backend {
	case BackendVolumes:
		if config.Auth.Host == "" {
			return errors.ConfigInvalid("DATABRICKS_HOST is required for the volumes image backend")
		}
	case BackendS3:
		if config.Images.S3Bucket == "" {
			return errors.ConfigInvalid("QC_S3_BUCKET is required for the s3 image backend")
		}
	default:
		return errors.ConfigInvalid("QC_IMAGE_BACKEND must be volumes or s3")
	}
	if !strings.HasSuffix(config.Images.AllowedPrefix, "/") {
		return errors.ConfigInvalid("QC_IMAGE_PREFIX must end with /")
	}
	if config.Query.TotalPolicy != TotalPolicyFiltered && config.Query.TotalPolicy != TotalPolicyGrand {
		return errors.ConfigInvalid("QC_TOTAL_POLICY must be filtered or grand")
	}
	if config.Query.DefaultPageSize < 1 || config.Query.DefaultPageSize > 100 {
		return errors.ConfigInvalid("QC_PAGE_SIZE must be between 1 and 100")
	}
	if config.Connection.Lifetime <= 0 {
		return errors.ConfigInvalid("QC_CREDENTIAL_LIFETIME must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
