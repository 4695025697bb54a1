package rag

import (
	"context"

	"github.com/xhad/ragmodes/internal/models"
	"golang.org/x/sync/errgroup"
)

// Comparer runs the text and image pipelines on the same query.
type Comparer struct {
	Text  Pipeline
	Image Pipeline
	Model string
}

func NewComparer(text, image Pipeline, model string) *Comparer {
	return &Comparer{Text: text, Image: image, Model: model}
}

// Compare runs both modes concurrently and waits for both. The first error
// is returned once both have finished.
func (c *Comparer) Compare(ctx context.Context, query string) (*models.Comparison, error) {
	result := &models.Comparison{Model: c.Model, Query: query}

	var g errgroup.Group
	g.Go(func() error {
		answer, err := c.Text.Answer(ctx, query)
		result.Text = answer
		return err
	})
	g.Go(func() error {
		answer, err := c.Image.Answer(ctx, query)
		result.Image = answer
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
