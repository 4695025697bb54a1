package config

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var collectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if !slices.Contains(SupportedProviders, c.LLM.Provider) {
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unsupported provider '%s'", c.LLM.Provider),
		})
	}

	if c.LLM.Provider == "openai" && c.LLM.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.api_key",
			Message: "OpenAI API key is required",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 16384 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 16384",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.LLM.BaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid base URL",
			})
		}
	}

	if !slices.Contains(SupportedProviders, c.Embeddings.Provider) {
		errors = append(errors, ValidationError{
			Field:   "embeddings.provider",
			Message: fmt.Sprintf("unsupported provider '%s'", c.Embeddings.Provider),
		})
	}

	// Validate vector database config
	if !slices.Contains(SupportedBackends, c.VectorDB.Backend) {
		errors = append(errors, ValidationError{
			Field:   "vector_db.backend",
			Message: fmt.Sprintf("vector database not supported: '%s'", c.VectorDB.Backend),
		})
	}

	if c.VectorDB.Backend == "pgvector" {
		if c.VectorDB.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "vector_db.url",
				Message: "database URL is required for pgvector",
			})
		} else if _, err := url.Parse(c.VectorDB.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "vector_db.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.VectorDB.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "vector_db.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	for field, name := range map[string]string{
		"vector_db.text_collection":  c.VectorDB.TextCollection,
		"vector_db.image_collection": c.VectorDB.ImageCollection,
	} {
		if !collectionName.MatchString(name) {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid collection name '%s'", name),
			})
		}
	}

	if c.VectorDB.TextCollection == c.VectorDB.ImageCollection {
		errors = append(errors, ValidationError{
			Field:   "vector_db.image_collection",
			Message: "text and image collections must differ",
		})
	}

	// Validate chunking config
	if !slices.Contains(SupportedChunkTypes, c.Chunking.Type) {
		errors = append(errors, ValidationError{
			Field:   "chunking.type",
			Message: fmt.Sprintf("chunking method not implemented: '%s'", c.Chunking.Type),
		})
	}

	if c.Chunking.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunking.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "chunking.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Chunking.BreakpointPercentile <= 0 || c.Chunking.BreakpointPercentile > 100 {
		errors = append(errors, ValidationError{
			Field:   "chunking.breakpoint_percentile",
			Message: "breakpoint_percentile must be in (0, 100]",
		})
	}

	if c.Retrieval.NumDocs < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.num_docs",
			Message: "num_docs must be positive",
		})
	}

	if c.Captioning.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "captioning.rate_limit",
			Message: "rate_limit must not be negative",
		})
	}

	if c.Storage.DataDir == "" {
		errors = append(errors, ValidationError{
			Field:   "storage.data_dir",
			Message: "data_dir is required",
		})
	}

	return errors
}
