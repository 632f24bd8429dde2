// Package config loads the settings of the airc command.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/RCFilm/AiRC-LLM/blobstore/minio"
	"github.com/RCFilm/AiRC-LLM/engines"
	"github.com/RCFilm/AiRC-LLM/memory"
	"github.com/RCFilm/AiRC-LLM/vectorindex"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
)

type Config struct {
	LogLevel string `yaml:"log_level" json:"log_level,omitempty" split_words:"true" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`
	// DataDir holds the workspace repository and local memory snapshots.
	DataDir        string                           `yaml:"data_dir" json:"data_dir,omitempty" split_words:"true"`
	DefaultBackend string                           `yaml:"default_backend" json:"default_backend,omitempty" split_words:"true"`
	Memory         MemoryConfig                     `yaml:"memory" json:"memory" ignored:"true"`
	Storage        StorageConfig                    `yaml:"storage" json:"storage" ignored:"true"`
	Backends       map[string]engines.BackendConfig `yaml:"backends" json:"backends" ignored:"true"`
}

type MemoryConfig struct {
	Dimension      int    `yaml:"dimension" json:"dimension"`
	Capacity       int    `yaml:"capacity" json:"capacity"`
	M              int    `yaml:"m" json:"m"`
	EFConstruction int    `yaml:"ef_construction" json:"ef_construction" split_words:"true"`
	EFSearch       int    `yaml:"ef_search" json:"ef_search" split_words:"true"`
	TopK           int    `yaml:"top_k" json:"top_k" split_words:"true"`
	HistoryLimit   int    `yaml:"history_limit" json:"history_limit" split_words:"true"`
	Compression    string `yaml:"compression" json:"compression" jsonschema:"enum=none,enum=lz4,enum=zstd"`
	// EmbeddingCache is the number of embeddings kept in memory, 0 disables the cache.
	EmbeddingCache int64 `yaml:"embedding_cache" json:"embedding_cache,omitempty" split_words:"true"`
}

type StorageConfig struct {
	Repository string       `yaml:"repository" json:"repository" jsonschema:"enum=json,enum=sqlite"`
	Blob       string       `yaml:"blob" json:"blob" jsonschema:"enum=local,enum=minio"`
	Minio      minio.Config `yaml:"minio" json:"minio,omitempty"`
}

func Default() *Config {
	return &Config{
		LogLevel:       "info",
		DataDir:        defaultDataDir(),
		DefaultBackend: "ollama",
		Memory: MemoryConfig{
			Dimension:      128,
			Capacity:       100000,
			M:              vectorindex.DefaultOptions.M,
			EFConstruction: vectorindex.DefaultOptions.EFConstruction,
			EFSearch:       vectorindex.DefaultOptions.EFSearch,
			TopK:           3,
			HistoryLimit:   20,
			Compression:    "zstd",
			EmbeddingCache: 1024,
		},
		Storage: StorageConfig{
			Repository: "json",
			Blob:       "local",
		},
		Backends: map[string]engines.BackendConfig{
			"ollama": {
				Type:      "ollama",
				ServerURL: "http://localhost:11434",
				Model:     "llama3",
				Timeout:   2 * time.Minute,
			},
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".airc"
	}
	return filepath.Join(home, ".airc")
}

// IndexOptions returns the graph parameters of new memory indexes.
func (c *Config) IndexOptions() vectorindex.Options {
	return vectorindex.Options{
		M:              c.Memory.M,
		EFConstruction: c.Memory.EFConstruction,
		EFSearch:       c.Memory.EFSearch,
		Seed:           vectorindex.DefaultOptions.Seed,
	}
}

// BackendNames returns the configured backend names, sorted.
func (c *Config) BackendNames() []string {
	names := maps.Keys(c.Backends)
	slices.Sort(names)
	return names
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid log_level: %w", err))
	}
	if c.DataDir == "" {
		result = multierror.Append(result, fmt.Errorf("data_dir must be set"))
	}

	m := c.Memory
	if m.Dimension <= 0 {
		result = multierror.Append(result, fmt.Errorf("memory.dimension must be positive, got %d", m.Dimension))
	}
	if m.Capacity <= 0 {
		result = multierror.Append(result, fmt.Errorf("memory.capacity must be positive, got %d", m.Capacity))
	}
	if m.M < 2 {
		result = multierror.Append(result, fmt.Errorf("memory.m must be at least 2, got %d", m.M))
	}
	if m.EFConstruction < 1 || m.EFSearch < 1 {
		result = multierror.Append(result, fmt.Errorf("memory.ef_construction and memory.ef_search must be positive"))
	}
	if m.TopK < 0 || m.HistoryLimit < 0 || m.EmbeddingCache < 0 {
		result = multierror.Append(result, fmt.Errorf("memory.top_k, memory.history_limit and memory.embedding_cache must not be negative"))
	}
	if _, err := memory.ParseCompression(m.Compression); err != nil {
		result = multierror.Append(result, err)
	}

	switch c.Storage.Repository {
	case "json", "sqlite":
	default:
		result = multierror.Append(result, fmt.Errorf("invalid storage.repository %q (must be json or sqlite)", c.Storage.Repository))
	}
	switch c.Storage.Blob {
	case "local":
	case "minio":
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("storage.minio needs an endpoint and a bucket"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("invalid storage.blob %q (must be local or minio)", c.Storage.Blob))
	}

	if len(c.Backends) == 0 {
		result = multierror.Append(result, fmt.Errorf("no backends configured"))
	}
	if _, ok := c.Backends[c.DefaultBackend]; !ok {
		result = multierror.Append(result, fmt.Errorf("default_backend %q is not configured", c.DefaultBackend))
	}
	for _, name := range c.BackendNames() {
		backend := c.Backends[name]
		if backend.Type == "" {
			result = multierror.Append(result, fmt.Errorf("backends.%s.type must be set", name))
		}
		if backend.Timeout < 0 || backend.RequestsPerSecond < 0 {
			result = multierror.Append(result, fmt.Errorf("backends.%s has a negative timeout or rate", name))
		}
		if backend.EmbeddingDimensions != 0 && backend.EmbeddingDimensions != m.Dimension {
			result = multierror.Append(result, fmt.Errorf("backends.%s.embedding_dimensions is %d but memory.dimension is %d",
				name, backend.EmbeddingDimensions, m.Dimension))
		}
	}
	return result.ErrorOrNil()
}

// envName turns a backend name into its environment variable prefix.
func envName(name string) string {
	return "AIRC_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}
