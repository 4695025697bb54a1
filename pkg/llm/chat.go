package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string
	APIKey      string
}

// NewWithConfig creates the language model for the configured provider.
func NewWithConfig(config ChatConfig) (types.LanguageModel, error) {
	// Validate and set default values for config fields if necessary
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}

	switch config.Provider {
	case "", "openai":
		if config.Model == "" {
			config.Model = "gpt-4o-mini"
		}
		return newOpenAIChat(config), nil
	case "ollama":
		return newOllamaChat(config)
	default:
		return nil, types.Unsupported(config.Provider)
	}
}

// ChatEngine answers prompts with a local Ollama model.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

func newOllamaChat(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "llava" // Default multimodal Ollama model
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}

	llm, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
	}, nil
}

func (ce *ChatEngine) ModelName() string {
	return ce.config.Model
}

// Complete sends the prompt, and any base64 PNG images, as one user message.
func (ce *ChatEngine) Complete(ctx context.Context, prompt string, images []string) (*models.Completion, error) {
	parts := []llms.ContentPart{llms.TextContent{Text: prompt}}
	for _, img := range images {
		data, err := base64.StdEncoding.DecodeString(img)
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
		parts = append(parts, llms.BinaryContent{MIMEType: "image/png", Data: data})
	}

	content := []llms.MessageContent{
		{Role: llms.ChatMessageTypeHuman, Parts: parts},
	}

	start := time.Now()
	response, err := ce.llm.GenerateContent(ctx, content,
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens))
	if err != nil {
		return nil, fmt.Errorf("%w: chat error: %v", types.ErrExternalService, err)
	}
	if response == nil || len(response.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response from LLM", types.ErrExternalService)
	}

	choice := response.Choices[0]
	completion := &models.Completion{
		Text:             choice.Content,
		PromptTokens:     intInfo(choice.GenerationInfo, "PromptTokens"),
		CompletionTokens: intInfo(choice.GenerationInfo, "CompletionTokens"),
		TotalTokens:      intInfo(choice.GenerationInfo, "TotalTokens"),
		Elapsed:          time.Since(start),
	}
	if completion.TotalTokens == 0 {
		completion.TotalTokens = completion.PromptTokens + completion.CompletionTokens
	}
	return completion, nil
}

func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// EstimateCost prices a completion at per1K currency units per thousand tokens.
func EstimateCost(totalTokens int, per1K float64) float64 {
	return float64(totalTokens) / 1000 * per1K
}
