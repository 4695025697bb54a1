package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
	"golang.org/x/time/rate"
)

// Captioner describes images and summarizes tables with a language model.
// Calls are throttled when a rate limit is set.
type Captioner struct {
	model   types.LanguageModel
	limiter *rate.Limiter
}

// NewCaptioner returns a captioner making at most ratePerSecond calls per
// second. Zero disables throttling.
func NewCaptioner(model types.LanguageModel, ratePerSecond float64) *Captioner {
	c := &Captioner{model: model}
	if ratePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return c
}

// DescribeImage returns the parsed caption and the raw reply. A reply that is
// not the expected JSON object gives a nil caption and no error.
func (c *Captioner) DescribeImage(ctx context.Context, b64Image string) (*types.Caption, string, error) {
	prompt, err := ImageDescriptionPrompt()
	if err != nil {
		return nil, "", err
	}

	completion, err := c.complete(ctx, prompt, []string{b64Image})
	if err != nil {
		return nil, "", err
	}

	caption, err := ParseCaption(completion.Text)
	if err != nil {
		return nil, completion.Text, nil
	}
	return caption, completion.Text, nil
}

func (c *Captioner) SummarizeTable(ctx context.Context, serialized string) (string, error) {
	prompt, err := TableSummaryPrompt(serialized)
	if err != nil {
		return "", err
	}

	completion, err := c.complete(ctx, prompt, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(completion.Text), nil
}

func (c *Captioner) complete(ctx context.Context, prompt string, images []string) (*models.Completion, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return c.model.Complete(ctx, prompt, images)
}

var errMalformedCaption = errors.New("malformed caption")

// ParseCaption decodes a reply into the two caption fields. Code fences and
// a json language tag around the object are ignored. Unknown or missing
// fields are an error.
func ParseCaption(raw string) (*types.Caption, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimPrefix(text, "JSON")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)

	caption, err := decodeCaption(text)
	if err != nil {
		// Models sometimes break lines inside string values
		caption, err = decodeCaption(strings.ReplaceAll(text, "\n", " "))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedCaption, err)
	}
	return caption, nil
}

func decodeCaption(text string) (*types.Caption, error) {
	var fields struct {
		ExtractedText    *string `json:"extracted_text"`
		ImageDescription *string `json:"image_description"`
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after caption object")
	}
	if fields.ExtractedText == nil || fields.ImageDescription == nil {
		return nil, errors.New("caption must have extracted_text and image_description")
	}
	return &types.Caption{
		ExtractedText:    *fields.ExtractedText,
		ImageDescription: *fields.ImageDescription,
	}, nil
}
