package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider       string  `yaml:"provider"`
		BaseURL        string  `yaml:"base_url"`
		APIKey         string  `yaml:"api_key"`
		ChatModel      string  `yaml:"chat_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
		CostPer1KToken float64 `yaml:"cost_per_1k_tokens"`
	} `yaml:"llm"`

	Embeddings struct {
		Provider  string `yaml:"provider"`
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"embeddings"`

	VectorDB struct {
		Backend         string `yaml:"backend"`
		URL             string `yaml:"url"`
		SQLitePath      string `yaml:"sqlite_path"`
		VectorDim       int    `yaml:"vector_dim"`
		TextCollection  string `yaml:"text_collection"`
		ImageCollection string `yaml:"image_collection"`
	} `yaml:"vector_db"`

	Storage struct {
		DataDir string `yaml:"data_dir"`
		DPI     int    `yaml:"dpi"`
	} `yaml:"storage"`

	Chunking struct {
		Type                 string  `yaml:"type"`
		ChunkSize            int     `yaml:"chunk_size"`
		ChunkOverlap         int     `yaml:"chunk_overlap"`
		BreakpointPercentile float64 `yaml:"breakpoint_percentile"`
	} `yaml:"chunking"`

	Retrieval struct {
		NumDocs int `yaml:"num_docs"`
	} `yaml:"retrieval"`

	Captioning struct {
		RateLimit float64 `yaml:"rate_limit"`
	} `yaml:"captioning"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// Supported vector database backends and chunking strategies.
var (
	SupportedBackends   = []string{"pgvector", "sqlite", "memory"}
	SupportedChunkTypes = []string{"fixed", "recursive", "semantic"}
	SupportedProviders  = []string{"openai", "ollama"}
)

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/ragmodes/config.yaml"),
			"/etc/ragmodes/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var config Config
	if len(doc.Content) > 0 {
		if err := doc.Decode(&config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for keys absent from the file
	applyDefaults(&config, presentKeys(&doc))

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config, nil)
	return config, nil
}

// presentKeys lists the dotted paths of every key set in a YAML document,
// such as "chunking.chunk_overlap".
func presentKeys(doc *yaml.Node) map[string]bool {
	keys := map[string]bool{}
	var walk func(n *yaml.Node, prefix string)
	walk = func(n *yaml.Node, prefix string) {
		if n.Kind != yaml.MappingNode {
			return
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := prefix + n.Content[i].Value
			keys[key] = true
			walk(n.Content[i+1], key+".")
		}
	}
	for _, n := range doc.Content {
		walk(n, "")
	}
	return keys
}

// embeddingDims maps known embedding models to their output size.
var embeddingDims = map[string]int{
	"text-embedding-ada-002":  1536,
	"text-embedding-3-small":  1536,
	"text-embedding-3-large":  3072,
	"nomic-embed-text":        768,
	"nomic-embed-text:latest": 768,
	"mxbai-embed-large":       1024,
	"all-minilm":              384,
}

// defaultVectorDim returns the vector size of the configured embedding model.
func defaultVectorDim(config *Config) int {
	if dim, ok := embeddingDims[config.Embeddings.Model]; ok {
		return dim
	}
	if config.Embeddings.Provider == "ollama" {
		return 768
	}
	return 1536
}

// applyDefaults fills unset values. Zero is a valid value for temperature and
// chunk overlap, so those only get defaults when set does not name them.
func applyDefaults(config *Config, set map[string]bool) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "openai"
	}
	if config.LLM.ChatModel == "" {
		config.LLM.ChatModel = "gpt-4o-mini"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 4096
	}
	if !set["llm.temperature"] && config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.8
	}
	if config.LLM.CostPer1KToken == 0 {
		config.LLM.CostPer1KToken = 0.002
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Embeddings.Provider == "" {
		config.Embeddings.Provider = config.LLM.Provider
	}
	if config.Embeddings.Model == "" {
		if config.Embeddings.Provider == "ollama" {
			config.Embeddings.Model = "nomic-embed-text:latest"
		} else {
			config.Embeddings.Model = "text-embedding-ada-002"
		}
	}
	if config.Embeddings.BaseURL == "" && config.Embeddings.Provider == "ollama" {
		config.Embeddings.BaseURL = "http://localhost:11434"
	}
	if config.Embeddings.BatchSize == 0 {
		config.Embeddings.BatchSize = 64
	}

	if config.VectorDB.Backend == "" {
		config.VectorDB.Backend = "pgvector"
	}
	if config.VectorDB.VectorDim == 0 {
		config.VectorDB.VectorDim = defaultVectorDim(config)
	}
	if config.VectorDB.SQLitePath == "" {
		config.VectorDB.SQLitePath = "ragmodes.db"
	}
	if config.VectorDB.TextCollection == "" {
		config.VectorDB.TextCollection = "usertext"
	}
	if config.VectorDB.ImageCollection == "" {
		config.VectorDB.ImageCollection = "userimages"
	}

	if config.Storage.DataDir == "" {
		config.Storage.DataDir = "data"
	}
	if config.Storage.DPI == 0 {
		config.Storage.DPI = 150
	}

	if config.Chunking.Type == "" {
		config.Chunking.Type = "semantic"
	}
	if config.Chunking.ChunkSize == 0 {
		config.Chunking.ChunkSize = 1000
	}
	if !set["chunking.chunk_overlap"] && config.Chunking.ChunkOverlap == 0 {
		config.Chunking.ChunkOverlap = 100
	}
	if config.Chunking.BreakpointPercentile == 0 {
		config.Chunking.BreakpointPercentile = 95
	}

	if config.Retrieval.NumDocs == 0 {
		config.Retrieval.NumDocs = 5
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && config.LLM.APIKey == "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		if config.LLM.Provider == "ollama" {
			config.LLM.BaseURL = baseURL
		}
		if config.Embeddings.Provider == "ollama" ||
			(config.Embeddings.Provider == "" && config.LLM.Provider == "ollama") {
			config.Embeddings.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.VectorDB.URL = dbURL
	}
	if dataDir := os.Getenv("RAGMODES_DATA_DIR"); dataDir != "" {
		config.Storage.DataDir = dataDir
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}
