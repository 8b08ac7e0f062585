// Package config loads and validates the ETL configuration and the
// credential file. Validation runs before any source is processed; a
// config problem aborts the whole run.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/greenbutton-etl/internal/schema"
)

// Error reports one or more configuration problems. It is fatal: the run
// must not start while any problem is present.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid configuration:\n  " + strings.Join(e.Problems, "\n  ")
}

// S3Config locates the webhook notification objects.
type S3Config struct {
	Bucket        string `yaml:"bucket"`
	WebhookPrefix string `yaml:"webhook_prefix"`
	ArchivePrefix string `yaml:"archive_prefix"`
	Region        string `yaml:"region"`
}

// APIConfig holds the utility API endpoints and TLS material.
type APIConfig struct {
	TokenURL           string `yaml:"token_url"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	StagingDir         string `yaml:"staging_dir"`
	MaxParallelSources int    `yaml:"max_parallel_sources"`
	ArchiveOnSuccess   bool   `yaml:"archive_on_success"`
}

// Timeout returns the per-request timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// SourceConfig describes one data source: where its rows land and how
// payload fields map onto table columns.
type SourceConfig struct {
	Name          string              `yaml:"name"`
	TableName     string              `yaml:"table_name"`
	PrimaryKey    []string            `yaml:"prim_key"`
	UpdateColumns []string            `yaml:"update_cols"`
	Schema        schema.SourceSchema `yaml:"schema"`
}

// Validate checks the source's schema and that every primary-key and
// update column names a schema target field.
func (s SourceConfig) Validate() []string {
	var problems []string
	if s.TableName == "" {
		problems = append(problems, fmt.Sprintf("[%s] table_name is required", s.Name))
	}
	if len(s.Schema) == 0 {
		problems = append(problems, fmt.Sprintf("[%s] schema is required", s.Name))
	}
	for _, p := range s.Schema.Validate() {
		problems = append(problems, fmt.Sprintf("[%s] %s", s.Name, p))
	}
	for _, col := range s.PrimaryKey {
		if !s.Schema.HasTarget(col) {
			problems = append(problems, fmt.Sprintf("[%s] primary key col %q not in db schema", s.Name, col))
		}
	}
	for _, col := range s.UpdateColumns {
		if !s.Schema.HasTarget(col) {
			problems = append(problems, fmt.Sprintf("[%s] update col %q not in db schema", s.Name, col))
		}
	}
	return problems
}

// ETLConfig is the full run configuration.
type ETLConfig struct {
	DBName     string         `yaml:"db_name"`
	SchemaName string         `yaml:"schema_name"`
	S3         S3Config       `yaml:"s3"`
	API        APIConfig      `yaml:"api"`
	Sources    []SourceConfig `yaml:"sources"`
}

// Validate collects every problem rather than stopping at the first, so
// operators see the full list in one run.
func (c *ETLConfig) Validate() []string {
	var problems []string
	if c.DBName == "" {
		problems = append(problems, "db_name is required")
	}
	if c.SchemaName == "" {
		problems = append(problems, "schema_name is required")
	}
	if c.S3.Bucket == "" {
		problems = append(problems, "s3.bucket is required")
	}
	if c.API.TokenURL == "" {
		problems = append(problems, "api.token_url is required")
	}
	if len(c.Sources) == 0 {
		problems = append(problems, "sources is required")
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		if src.Name == "" {
			problems = append(problems, "source name is required")
		}
		if seen[src.Name] {
			problems = append(problems, fmt.Sprintf("duplicate source name %q", src.Name))
		}
		seen[src.Name] = true
		problems = append(problems, src.Validate()...)
	}
	return problems
}

// Source returns the config for the named source, or nil.
func (c *ETLConfig) Source(name string) *SourceConfig {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i]
		}
	}
	return nil
}

// Load reads and validates the ETL configuration from path.
func Load(path string) (*ETLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Problems: []string{fmt.Sprintf("reading %s: %v", path, err)}}
	}

	var cfg ETLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &Error{Problems: []string{fmt.Sprintf("invalid yaml in %s: %v", path, err)}}
	}

	// Defaults
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = 30
	}
	if cfg.API.StagingDir == "" {
		cfg.API.StagingDir = "data"
	}
	if cfg.API.MaxParallelSources == 0 {
		cfg.API.MaxParallelSources = 1
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-west-2"
	}

	// Normalize declared dtypes; unknown values ingest as text.
	for i := range cfg.Sources {
		for j := range cfg.Sources[i].Schema {
			cfg.Sources[i].Schema[j].Type = schema.ParseFieldType(string(cfg.Sources[i].Schema[j].Type))
		}
	}

	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, &Error{Problems: problems}
	}
	return &cfg, nil
}

// LoadFromEnv loads the configuration with environment variable overrides.
// A .env file is read first if present, so local runs can keep overrides
// out of the config file.
func LoadFromEnv(path string) (*ETLConfig, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ETL_S3_BUCKET"); v != "" {
		cfg.S3.Bucket = v
	}
	if v := os.Getenv("ETL_S3_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("ETL_WEBHOOK_PREFIX"); v != "" {
		cfg.S3.WebhookPrefix = v
	}
	if v := os.Getenv("ETL_ARCHIVE_PREFIX"); v != "" {
		cfg.S3.ArchivePrefix = v
	}
	if v := os.Getenv("ETL_TOKEN_URL"); v != "" {
		cfg.API.TokenURL = v
	}
	if v := os.Getenv("ETL_CERT_FILE"); v != "" {
		cfg.API.CertFile = v
	}
	if v := os.Getenv("ETL_KEY_FILE"); v != "" {
		cfg.API.KeyFile = v
	}
	if v := os.Getenv("ETL_STAGING_DIR"); v != "" {
		cfg.API.StagingDir = v
	}

	return cfg, nil
}

// Credentials holds the OAuth client pair and the warehouse login. All
// fields are required and pre-validated before the pipeline sees them.
type Credentials struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	User         string `yaml:"user"`
	Host         string `yaml:"host"`
	Password     string `yaml:"password"`
}

// Validate reports each missing credential field by name.
func (c Credentials) Validate() []string {
	var problems []string
	required := map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"user":          c.User,
		"host":          c.Host,
		"password":      c.Password,
	}
	for _, name := range []string{"client_id", "client_secret", "user", "host", "password"} {
		if required[name] == "" {
			problems = append(problems, fmt.Sprintf("credentials.%s not in credential file", name))
		}
	}
	return problems
}

// LoadCredentials reads and validates the credential file at path.
// Environment variables of the form ETL_CLIENT_ID etc. override file
// values before validation.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Problems: []string{fmt.Sprintf("reading %s: %v", path, err)}}
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, &Error{Problems: []string{fmt.Sprintf("invalid yaml in %s: %v", path, err)}}
	}

	if v := os.Getenv("ETL_CLIENT_ID"); v != "" {
		creds.ClientID = v
	}
	if v := os.Getenv("ETL_CLIENT_SECRET"); v != "" {
		creds.ClientSecret = v
	}
	if v := os.Getenv("ETL_DB_USER"); v != "" {
		creds.User = v
	}
	if v := os.Getenv("ETL_DB_HOST"); v != "" {
		creds.Host = v
	}
	if v := os.Getenv("ETL_DB_PASSWORD"); v != "" {
		creds.Password = v
	}

	if problems := creds.Validate(); len(problems) > 0 {
		return nil, &Error{Problems: problems}
	}
	return &creds, nil
}
