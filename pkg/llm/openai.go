package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
)

// OpenAIChat answers prompts with the OpenAI chat completions API. Images are
// sent as data URLs next to the prompt.
type OpenAIChat struct {
	config ChatConfig
	client *openai.Client
}

func newOpenAIChat(config ChatConfig) *OpenAIChat {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &OpenAIChat{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

func (c *OpenAIChat) ModelName() string {
	return c.config.Model
}

func (c *OpenAIChat) Complete(ctx context.Context, prompt string, images []string) (*models.Completion, error) {
	message := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(images) == 0 {
		message.Content = prompt
	} else {
		parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
		for _, img := range images {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:image/png;base64," + img,
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
		message.MultiContent = parts
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    []openai.ChatCompletionMessage{message},
		MaxTokens:   c.config.MaxTokens,
		Temperature: float32(c.config.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai chat: %v", types.ErrExternalService, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", types.ErrExternalService)
	}

	return &models.Completion{
		Text:             resp.Choices[0].Message.Content,
		TotalTokens:      resp.Usage.TotalTokens,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Elapsed:          time.Since(start),
	}, nil
}
