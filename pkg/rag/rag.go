// Package rag answers questions from a collection, either with the retrieved
// text as context or with the retrieved page images attached.
package rag

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xhad/ragmodes/internal/logger"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
	"github.com/xhad/ragmodes/pkg/llm"
)

// Pipeline answers one query in one retrieval mode.
type Pipeline interface {
	Mode() models.Mode
	Answer(ctx context.Context, query string) (*models.Answer, error)
}

type Options struct {
	NumDocs   int
	CostPer1K float64
}

func (o Options) withDefaults() Options {
	if o.NumDocs <= 0 {
		o.NumDocs = 5
	}
	if o.CostPer1K == 0 {
		o.CostPer1K = 0.002
	}
	return o
}

// TextPipeline joins the retrieved records into the prompt context.
type TextPipeline struct {
	store   types.VectorStore
	model   types.LanguageModel
	options Options
}

func NewTextPipeline(store types.VectorStore, model types.LanguageModel, options Options) *TextPipeline {
	return &TextPipeline{store: store, model: model, options: options.withDefaults()}
}

func (p *TextPipeline) Mode() models.Mode { return models.ModeText }

func (p *TextPipeline) Answer(ctx context.Context, query string) (*models.Answer, error) {
	start := time.Now()
	records, err := retrieve(ctx, p.store, query, p.options.NumDocs)
	if err != nil {
		return nil, err
	}

	parts := make([]string, 0, len(records))
	for _, r := range records {
		parts = append(parts, r.ContextText())
	}
	joined := strings.Join(parts, "\n\n")

	answer, err := ask(ctx, p.model, models.ModeText, joined, query, nil, p.options)
	if err != nil {
		return nil, err
	}
	answer.Context = joined
	answer.Sources = records
	answer.Elapsed = time.Since(start)
	return answer, nil
}

// ImagePipeline sends the retrieved page images to the model with an empty
// context.
type ImagePipeline struct {
	store   types.VectorStore
	model   types.LanguageModel
	options Options
}

func NewImagePipeline(store types.VectorStore, model types.LanguageModel, options Options) *ImagePipeline {
	return &ImagePipeline{store: store, model: model, options: options.withDefaults()}
}

func (p *ImagePipeline) Mode() models.Mode { return models.ModeImage }

func (p *ImagePipeline) Answer(ctx context.Context, query string) (*models.Answer, error) {
	start := time.Now()
	records, err := retrieve(ctx, p.store, query, p.options.NumDocs)
	if err != nil {
		return nil, err
	}

	var (
		images []string
		paths  []string
	)
	for _, r := range records {
		path := r.Meta(models.MetaSourcePath)
		if path == "" {
			logger.Warn("Record %s has no image path, skipping", r.ID)
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("Image %s could not be read, skipping: %v", path, err)
			continue
		}
		images = append(images, base64.StdEncoding.EncodeToString(data))
		paths = append(paths, path)
	}
	logger.Debug("Image mode retrieved %d records, sending %d images", len(records), len(images))

	answer, err := ask(ctx, p.model, models.ModeImage, "", query, images, p.options)
	if err != nil {
		return nil, err
	}
	answer.ImagePaths = paths
	// Answers read off a page often come back as "Key: Value" lines
	if fields := ParseFields(answer.Response); len(fields) > 0 {
		answer.Fields = fields
	}
	answer.Sources = records
	answer.Elapsed = time.Since(start)
	return answer, nil
}

func retrieve(ctx context.Context, store types.VectorStore, query string, topK int) ([]models.Record, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}
	records, err := store.Query(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", store.Collection(), err)
	}
	return records, nil
}

func ask(ctx context.Context, model types.LanguageModel, mode models.Mode, contextText, query string, images []string, options Options) (*models.Answer, error) {
	prompt, err := llm.RAGPrompt(contextText, query)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	completion, err := model.Complete(ctx, prompt, images)
	if err != nil {
		if !errors.Is(err, types.ErrExternalService) {
			err = fmt.Errorf("%w: %v", types.ErrExternalService, err)
		}
		return nil, fmt.Errorf("%s mode: %w", mode, err)
	}

	return &models.Answer{
		Mode:             mode,
		Response:         completion.Text,
		TotalTokens:      completion.TotalTokens,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
		EstimatedCost:    llm.EstimateCost(completion.TotalTokens, options.CostPer1K),
	}, nil
}

// ParseFields reads "Key: Value" lines from a response. Lines without a
// colon are ignored and later keys overwrite earlier ones.
func ParseFields(response string) map[string]string {
	fields := map[string]string{}
	for _, line := range strings.Split(response, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields
}
