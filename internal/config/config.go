package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the consolidator service configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Index       IndexConfig       `yaml:"index"`
	Convergence ConvergenceConfig `yaml:"convergence"`
	Extraction  ExtractionConfig  `yaml:"extraction"`
	Refinement  RefinementConfig  `yaml:"refinement"`
	Categories  []CategoryConfig  `yaml:"categories"`
	Auth        AuthConfig        `yaml:"auth"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds KV database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KVCapacity       int      `yaml:"kv_capacity"` // memory driver only
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"` // ollama, openai (default: ollama)
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	TimeoutSec          int    `yaml:"timeout_sec"`
	MaxConcurrency      int    `yaml:"max_concurrency"`
	DocumentInstruction string `yaml:"document_instruction"`
	CacheTTLSec         int    `yaml:"cache_ttl_sec"` // 0 = без TTL
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Driver     string `yaml:"driver"` // qdrant, redis, memory (default: qdrant)
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// IndexConfig holds HNSW settings of the redis vector index.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
	ScrollPageSize  int `yaml:"scroll_page_size"`
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// ConvergenceConfig holds convergence analysis defaults.
type ConvergenceConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MinChainLength      int     `yaml:"min_chain_length"`
	MaxDocuments        int     `yaml:"max_documents"`
	PersistEnriched     bool    `yaml:"persist_enriched"`
}

// ExtractionConfig holds triple extraction settings.
type ExtractionConfig struct {
	HighRelevanceThreshold float64 `yaml:"high_relevance_threshold"`
	CacheSize              int     `yaml:"cache_size"`
	SnapshotOnShutdown     bool    `yaml:"snapshot_on_shutdown"`
}

// RefinementConfig holds refinement loop settings.
type RefinementConfig struct {
	MaxIterations        int     `yaml:"max_iterations"`
	ConvergenceThreshold float64 `yaml:"convergence_threshold"`
	// MinConfidenceGain may be set to 0; only an absent key takes the default.
	MinConfidenceGain      *float64 `yaml:"min_confidence_gain"`
	IterationDelayMs       int      `yaml:"iteration_delay_ms"`
	GraceWindowSec         int      `yaml:"grace_window_sec"`
	GraceIterations        int      `yaml:"grace_iterations"`
	NeighborLimit          int      `yaml:"neighbor_limit"`
	NeighborScoreThreshold float64  `yaml:"neighbor_score_threshold"`
	BatchSize              int      `yaml:"batch_size"`
	BatchPauseMs           int      `yaml:"batch_pause_ms"`
	RetriggerDelayMs       int      `yaml:"retrigger_delay_ms"`
	AutoTrigger            bool     `yaml:"auto_trigger"`
}

// CategoryConfig is one entry of the static category catalogue.
type CategoryConfig struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "nomic-embed-text"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Embedding.MaxConcurrency <= 0 {
		c.Embedding.MaxConcurrency = 4
	}
	if c.VectorStore.Driver == "" {
		c.VectorStore.Driver = "qdrant"
	}
	if c.VectorStore.Collection == "" {
		c.VectorStore.Collection = "knowledge_consolidator"
	}
	if c.VectorStore.TimeoutSec <= 0 {
		c.VectorStore.TimeoutSec = 30
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.ScrollPageSize <= 0 {
		c.Index.ScrollPageSize = 100
	}
	if c.Index.DefaultPageSize <= 0 {
		c.Index.DefaultPageSize = 20
	}
	if c.Index.MaxPageSize <= 0 {
		c.Index.MaxPageSize = 100
	}
	if c.Convergence.SimilarityThreshold <= 0 {
		c.Convergence.SimilarityThreshold = 0.7
	}
	if c.Convergence.MinChainLength <= 0 {
		c.Convergence.MinChainLength = 3
	}
	if c.Convergence.MaxDocuments <= 0 {
		c.Convergence.MaxDocuments = 500
	}
	if c.Extraction.HighRelevanceThreshold <= 0 {
		c.Extraction.HighRelevanceThreshold = 0.8
	}
	if c.Extraction.CacheSize <= 0 {
		c.Extraction.CacheSize = 1000
	}
	if c.Refinement.MaxIterations <= 0 {
		c.Refinement.MaxIterations = 5
	}
	if c.Refinement.ConvergenceThreshold <= 0 {
		c.Refinement.ConvergenceThreshold = 0.9
	}
	if c.Refinement.MinConfidenceGain == nil {
		gain := 0.05
		c.Refinement.MinConfidenceGain = &gain
	}
	if c.Refinement.IterationDelayMs <= 0 {
		c.Refinement.IterationDelayMs = 500
	}
	if c.Refinement.GraceWindowSec <= 0 {
		c.Refinement.GraceWindowSec = 10
	}
	if c.Refinement.GraceIterations <= 0 {
		c.Refinement.GraceIterations = 3
	}
	if c.Refinement.NeighborLimit <= 0 {
		c.Refinement.NeighborLimit = 10
	}
	if c.Refinement.NeighborScoreThreshold <= 0 {
		c.Refinement.NeighborScoreThreshold = 0.7
	}
	if c.Refinement.BatchSize <= 0 {
		c.Refinement.BatchSize = 3
	}
	if c.Refinement.BatchPauseMs <= 0 {
		c.Refinement.BatchPauseMs = 1000
	}
	if c.Refinement.RetriggerDelayMs <= 0 {
		c.Refinement.RetriggerDelayMs = 2000
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "kc:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be \"redis\" or \"memory\", got %q", c.Database.Driver)
	}
	switch c.Embedding.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("embedding.provider must be \"ollama\" or \"openai\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required for the openai provider")
	}
	switch c.VectorStore.Driver {
	case "qdrant":
		if c.VectorStore.URL == "" {
			return fmt.Errorf("vector_store.url is required for the qdrant driver")
		}
	case "redis":
		if c.Database.Driver != "redis" {
			return fmt.Errorf("vector_store.driver \"redis\" requires database.driver \"redis\"")
		}
	case "memory":
	default:
		return fmt.Errorf("vector_store.driver must be \"qdrant\", \"redis\" or \"memory\", got %q", c.VectorStore.Driver)
	}
	if t := c.Convergence.SimilarityThreshold; t > 1 {
		return fmt.Errorf("convergence.similarity_threshold must be within (0, 1], got %g", t)
	}
	if t := c.Refinement.ConvergenceThreshold; t > 1 {
		return fmt.Errorf("refinement.convergence_threshold must be within (0, 1], got %g", t)
	}
	if g := c.Refinement.MinConfidenceGain; g != nil && (*g < 0 || *g > 1) {
		return fmt.Errorf("refinement.min_confidence_gain must be within [0, 1], got %g", *g)
	}
	if t := c.Refinement.NeighborScoreThreshold; t > 1 {
		return fmt.Errorf("refinement.neighbor_score_threshold must be within (0, 1], got %g", t)
	}
	seen := make(map[string]bool, len(c.Categories))
	for i, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("categories[%d].name is required", i)
		}
		if seen[cat.Name] {
			return fmt.Errorf("duplicate category %q", cat.Name)
		}
		seen[cat.Name] = true
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
