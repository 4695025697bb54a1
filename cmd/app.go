package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/xhad/ragmodes/internal/types"
	cfgPkg "github.com/xhad/ragmodes/pkg/config"
	"github.com/xhad/ragmodes/pkg/extractor"
	"github.com/xhad/ragmodes/pkg/ingest"
	"github.com/xhad/ragmodes/pkg/llm"
	"github.com/xhad/ragmodes/pkg/processor"
	"github.com/xhad/ragmodes/pkg/rag"
	"github.com/xhad/ragmodes/pkg/store"
)

// historyCollection holds chat exchanges saved with --save-history.
const historyCollection = "chathistory"

// app is every component built from one configuration.
type app struct {
	config     *cfgPkg.Config
	embedder   types.Embedder
	model      types.LanguageModel
	textStore  types.VectorStore
	imageStore types.VectorStore
	pipeline   *ingest.Pipeline
	comparer   *rag.Comparer
}

func newApp(ctx context.Context, config *cfgPkg.Config, progress ingest.Progress) (*app, error) {
	if errs := config.Validate(); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(joined...))
	}

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Provider:  config.Embeddings.Provider,
		Model:     config.Embeddings.Model,
		BaseURL:   config.Embeddings.BaseURL,
		APIKey:    config.LLM.APIKey,
		BatchSize: config.Embeddings.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	model, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    config.LLM.Provider,
		Model:       config.LLM.ChatModel,
		Temperature: config.LLM.Temperature,
		MaxTokens:   config.LLM.MaxTokens,
		BaseURL:     config.LLM.BaseURL,
		APIKey:      config.LLM.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	chunker, err := processor.NewChunker(processor.ProcessorConfig{
		Type:                 config.Chunking.Type,
		ChunkSize:            config.Chunking.ChunkSize,
		ChunkOverlap:         config.Chunking.ChunkOverlap,
		BreakpointPercentile: config.Chunking.BreakpointPercentile,
	}, embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}

	a := &app{config: config, embedder: embedder, model: model}

	a.textStore, err = a.openStore(ctx, config.VectorDB.TextCollection)
	if err != nil {
		return nil, err
	}
	a.imageStore, err = a.openStore(ctx, config.VectorDB.ImageCollection)
	if err != nil {
		a.textStore.Close()
		return nil, err
	}

	captioner := llm.NewCaptioner(model, config.Captioning.RateLimit)
	poppler := extractor.NewPoppler(config.Storage.DPI)

	a.pipeline, err = ingest.NewPipeline(ingest.PipelineConfig{
		DataDir:    config.Storage.DataDir,
		TextStore:  a.textStore,
		ImageStore: a.imageStore,
		Registry:   ingest.DefaultRegistry(chunker, captioner, poppler),
		Pages:      ingest.NewPageImageIngestor(captioner, poppler),
		Progress:   progress,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	options := rag.Options{
		NumDocs:   config.Retrieval.NumDocs,
		CostPer1K: config.LLM.CostPer1KToken,
	}
	a.comparer = rag.NewComparer(
		rag.NewTextPipeline(a.textStore, model, options),
		rag.NewImagePipeline(a.imageStore, model, options),
		model.ModelName(),
	)

	return a, nil
}

func (a *app) openStore(ctx context.Context, collection string) (types.VectorStore, error) {
	s, err := store.New(ctx, store.StoreConfig{
		Backend:    a.config.VectorDB.Backend,
		URL:        a.config.VectorDB.URL,
		SQLitePath: a.config.VectorDB.SQLitePath,
		VectorDim:  a.config.VectorDB.VectorDim,
	}, collection, a.embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store %s: %w", collection, err)
	}
	return s, nil
}

func (a *app) Close() {
	for _, s := range []types.VectorStore{a.textStore, a.imageStore} {
		if s != nil {
			s.Close()
		}
	}
}
