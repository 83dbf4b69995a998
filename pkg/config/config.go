package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/ajitpratap0/alphadata/pkg/logger"
)

// Dataset sources understood by the loader factory.
const (
	SourceFile = "file"
	SourceS3   = "s3"
	SourceGCS  = "gcs"
)

// Index column modes. Any other value names the index field explicitly.
const (
	IndexAuto = "auto"
	IndexNone = "none"
)

// Config is the top-level alphadata configuration.
type Config struct {
	Datasets      DatasetsConfig      `yaml:"datasets" json:"datasets"`
	Registry      RegistryConfig      `yaml:"registry" json:"registry"`
	Logging       logger.Config       `yaml:"logging" json:"logging"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// DatasetsConfig describes where datasets live and how they are interpreted.
type DatasetsConfig struct {
	// Source selects the backing store: file, s3 or gcs
	Source string `yaml:"source" json:"source"`
	// Root is the local directory holding dataset files (file source)
	Root string `yaml:"root" json:"root"`
	// Bucket and Prefix locate datasets in object storage
	Bucket string `yaml:"bucket" json:"bucket"`
	Prefix string `yaml:"prefix" json:"prefix"`
	// Region is the AWS region for the s3 source
	Region string `yaml:"region" json:"region"`
	// CredentialsFile is a GCP service account key for the gcs source
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	// IndexColumn is auto, none, or the name of the row-index field
	IndexColumn string `yaml:"index_column" json:"index_column"`
	// UseMmap maps uncompressed parquet files instead of reading them
	UseMmap bool `yaml:"use_mmap" json:"use_mmap"`
	// Preload lists datasets to materialize at startup
	Preload []string `yaml:"preload" json:"preload"`
}

// RegistryConfig tunes the dataset registry.
type RegistryConfig struct {
	PreloadConcurrency int `yaml:"preload_concurrency" json:"preload_concurrency"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	// EnableMetrics activates prometheus collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// MetricsAddr is where the CLI serves /metrics, empty to disable
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	// EnableTracing exports spans to stdout
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// Default returns a configuration that serves datasets from ./data.
func Default() *Config {
	return &Config{
		Datasets: DatasetsConfig{
			Source:      SourceFile,
			Root:        "data",
			IndexColumn: IndexAuto,
			UseMmap:     true,
		},
		Registry: RegistryConfig{
			PreloadConcurrency: runtime.NumCPU(),
		},
		Logging: logger.DefaultConfig(),
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			MetricsAddr:       "",
			EnableTracing:     false,
			TracingSampleRate: 1.0,
		},
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	d := &c.Datasets
	switch d.Source {
	case SourceFile:
		if d.Root == "" {
			return fmt.Errorf("datasets.root is required for the %s source", d.Source)
		}
	case SourceS3, SourceGCS:
		if d.Bucket == "" {
			return fmt.Errorf("datasets.bucket is required for the %s source", d.Source)
		}
	default:
		return fmt.Errorf("datasets.source must be one of file, s3, gcs; got %q", d.Source)
	}
	if strings.TrimSpace(d.IndexColumn) == "" {
		return fmt.Errorf("datasets.index_column cannot be empty, use %q or %q", IndexAuto, IndexNone)
	}
	if c.Registry.PreloadConcurrency <= 0 {
		return fmt.Errorf("registry.preload_concurrency must be positive")
	}
	if r := c.Observability.TracingSampleRate; r < 0 || r > 1 {
		return fmt.Errorf("observability.tracing_sample_rate must be within [0, 1]")
	}
	return nil
}
