package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/ragmodes/internal/mocks"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
	"github.com/xhad/ragmodes/pkg/ingest"
	"github.com/xhad/ragmodes/pkg/processor"
	"github.com/xhad/ragmodes/pkg/store"
)

// poisonStore fails every record whose content contains "poison".
type poisonStore struct {
	*store.Memory
}

func (s poisonStore) Store(ctx context.Context, record models.Record) (string, error) {
	if strings.Contains(record.Content, "poison") {
		return "", errors.New("store rejected record")
	}
	return s.Memory.Store(ctx, record)
}

// staticIngestor hands out fixed text units.
type staticIngestor struct {
	texts []string
	err   error
}

func (s *staticIngestor) Modality() models.Modality { return models.ModalityText }

func (s *staticIngestor) Extract(_ context.Context, path string) ([]models.RawUnit, error) {
	if s.err != nil {
		return nil, s.err
	}
	units := make([]models.RawUnit, len(s.texts))
	for i, text := range s.texts {
		units[i] = models.RawUnit{Modality: models.ModalityText, Text: text, Source: path}
	}
	return units, nil
}

func (s *staticIngestor) Transform(_ context.Context, unit models.RawUnit) (models.Record, error) {
	return models.Record{Content: unit.Text, Metadata: models.BaseMetadata(unit.Source, models.ModalityText, 0)}, nil
}

func writePDF(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, mocks.PDF(text), 0644))
	return path
}

func chunker(t *testing.T) types.Chunker {
	t.Helper()
	c, err := processor.NewChunker(processor.ProcessorConfig{Type: "fixed", ChunkSize: 1000, ChunkOverlap: 100}, nil)
	require.NoError(t, err)
	return c
}

// fixture builds a pipeline over memory stores with fake model services.
type fixture struct {
	dir       string
	text      *store.Memory
	images    *store.Memory
	captioner *mocks.Captioner
	pipeline  *ingest.Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dir:       t.TempDir(),
		text:      store.NewMemory("usertext", mocks.NewEmbedder()),
		images:    store.NewMemory("userimages", mocks.NewEmbedder()),
		captioner: &mocks.Captioner{Text: "Term: 12 months", Description: "Contract page"},
	}

	registry := ingest.NewRegistry()
	registry.Register(ingest.NewTextIngestor(chunker(t)), ".pdf", ".docx", ".html")
	registry.Register(&ingest.TableIngestor{
		Tables: func(_ context.Context, path string) ([]models.Table, error) {
			return []models.Table{{
				Columns: []string{"Region", "Sales"},
				Rows:    [][]string{{"North", "10"}, {"South", "20"}},
				Source:  path,
				Page:    1,
			}}, nil
		},
		Captioner: f.captioner,
	}, ".pdf", ".docx")
	registry.Register(&ingest.ImageIngestor{
		Images: func(context.Context, string) ([][]byte, string, error) {
			return [][]byte{mocks.PNG}, "", nil
		},
		Captioner: f.captioner,
	}, ".pdf", ".docx")

	pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{
		DataDir:    f.dir,
		TextStore:  f.text,
		ImageStore: f.images,
		Registry:   registry,
		Pages:      ingest.NewPageImageIngestor(f.captioner, &mocks.Rasterizer{Pages: 2}),
	})
	require.NoError(t, err)
	f.pipeline = pipeline
	return f
}

func TestIngestFileBothModes(t *testing.T) {
	f := newFixture(t)
	path := writePDF(t, f.dir, "contract.pdf", "The contract term is twelve months")

	report, err := f.pipeline.IngestFile(context.Background(), path)
	require.NoError(t, err)

	require.NotNil(t, report.Text)
	require.NotNil(t, report.Image)
	assert.Equal(t, "contract.pdf", report.File)
	assert.Equal(t, []string{
		"Success: all 2 units ingested in image mode.",
		"Success: all 3 units ingested in text mode.",
		"File ready to use",
	}, report.Messages)

	// one text segment, one table, one embedded image
	assert.Equal(t, 3, f.text.Len())
	assert.Equal(t, 2, f.images.Len())
	require.Len(t, report.Text.Modalities, 3)
	assert.Equal(t, models.ModalityTable, report.Text.Modalities[1].Modality)

	results, err := f.text.Query(context.Background(), "contract term twelve months", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "twelve months")
	assert.Equal(t, "contract.pdf", results[0].Meta(models.MetaFileName))

	pages, err := f.images.Query(context.Background(), "contract page", 2)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	for _, page := range pages {
		src := page.Meta(models.MetaSourcePath)
		assert.True(t, filepath.IsAbs(src))
		assert.FileExists(t, src)
		assert.Equal(t, "Contract page Term: 12 months", page.Content)
	}
}

func TestIngestFileMissingDataDir(t *testing.T) {
	f := newFixture(t)
	pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{
		DataDir:    filepath.Join(f.dir, "missing"),
		TextStore:  f.text,
		ImageStore: f.images,
	})
	require.NoError(t, err)

	report, err := pipeline.IngestFile(context.Background(), filepath.Join(f.dir, "x.pdf"))
	assert.ErrorIs(t, err, types.ErrPathNotFound)
	assert.Equal(t, []string{"Error: data directory does not exist."}, report.Messages)
	assert.Nil(t, report.Text)
	assert.Nil(t, report.Image)
}

func TestIngestFileMissingFile(t *testing.T) {
	f := newFixture(t)

	report, err := f.pipeline.IngestFile(context.Background(), filepath.Join(f.dir, "absent.pdf"))
	assert.ErrorIs(t, err, types.ErrPathNotFound)
	assert.Equal(t, []string{"Error: file does not exist."}, report.Messages)
	assert.Equal(t, 0, f.text.Len())
	assert.Equal(t, 0, f.images.Len())
}

func TestIngestFileUnsupported(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "notes.rtf")
	require.NoError(t, os.WriteFile(path, []byte("{\\rtf1}"), 0644))

	_, err := f.pipeline.IngestFile(context.Background(), path)
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "'.rtf'")
}

func TestIngestFileTextOnlyForHTML(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "page.html")
	require.NoError(t, os.WriteFile(path, []byte("<html><body><p>Payment is due in thirty days.</p></body></html>"), 0644))

	report, err := f.pipeline.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Nil(t, report.Image)
	require.NotNil(t, report.Text)
	assert.Equal(t, 1, f.text.Len())
	assert.Equal(t, 0, f.images.Len())
}

func TestIngestFileRasterizeFailure(t *testing.T) {
	f := newFixture(t)
	pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{
		DataDir:    f.dir,
		TextStore:  f.text,
		ImageStore: f.images,
		Registry:   ingest.NewRegistry(),
		Pages:      ingest.NewPageImageIngestor(f.captioner, &mocks.Rasterizer{Err: errors.New("pdftoppm not found")}),
	})
	require.NoError(t, err)
	path := writePDF(t, f.dir, "scan.pdf", "Page")

	report, err := pipeline.IngestFile(context.Background(), path)
	require.Error(t, err)
	require.NotNil(t, report.Image)
	assert.Contains(t, report.Image.Message, "pdftoppm not found")
	assert.NotContains(t, report.Messages, "File ready to use")
}

func TestRunPoisonedUnit(t *testing.T) {
	s := poisonStore{store.NewMemory("usertext", mocks.NewEmbedder())}
	ing := &staticIngestor{texts: []string{"alpha", "beta", "poison pill", "gamma", "delta"}}

	var mu sync.Mutex
	var calls []int
	report := ingest.Run(context.Background(), ing, s, "doc.pdf", func(collection string, _ models.Modality, done, total int) {
		assert.Equal(t, "usertext", collection)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 5, total)
		calls = append(calls, done)
	})

	assert.NoError(t, report.Err)
	assert.Equal(t, 5, report.Extracted)
	assert.Equal(t, 4, report.Stored)
	assert.Equal(t, 4, s.Len())
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 2, report.Failures[0].Index)
	assert.ErrorIs(t, report.Failures[0], types.ErrUnitIngestion)
	assert.Len(t, calls, 5)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, calls)
}

func TestRunExtractFailure(t *testing.T) {
	s := store.NewMemory("usertext", mocks.NewEmbedder())
	report := ingest.Run(context.Background(), &staticIngestor{err: errors.New("corrupt file")}, s, "doc.pdf", nil)

	assert.True(t, report.Failed())
	assert.Contains(t, report.Err.Error(), "corrupt file")
	assert.Equal(t, "usertext", report.Collection)
	assert.Equal(t, 0, report.Stored)
}

func TestRunCaptionFailureIsPerUnit(t *testing.T) {
	s := store.NewMemory("usertext", mocks.NewEmbedder())
	captioner := &mocks.Captioner{FailOn: map[string]bool{"AQID": true}}
	ing := &ingest.ImageIngestor{
		Images: func(context.Context, string) ([][]byte, string, error) {
			return [][]byte{{1, 2, 3}, mocks.PNG}, "", nil
		},
		Captioner: captioner,
	}

	report := ingest.Run(context.Background(), ing, s, "doc.docx", nil)
	assert.Equal(t, 2, report.Extracted)
	assert.Equal(t, 1, report.Stored)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0], types.ErrExternalService)
}

func TestRegistry(t *testing.T) {
	captioner := &mocks.Captioner{}
	r := ingest.DefaultRegistry(chunker(t), captioner, nil)

	modalities := func(path string) []models.Modality {
		var out []models.Modality
		for _, ing := range r.For(path) {
			out = append(out, ing.Modality())
		}
		return out
	}

	assert.Equal(t, []models.Modality{models.ModalityText, models.ModalityTable, models.ModalityImage}, modalities("a.PDF"))
	assert.Equal(t, []models.Modality{models.ModalityText, models.ModalityTable, models.ModalityImage}, modalities("a.docx"))
	assert.Equal(t, []models.Modality{models.ModalityText}, modalities("a.html"))
	assert.Equal(t, []models.Modality{models.ModalityText, models.ModalityTable}, modalities("a.pptx"))
	assert.Equal(t, []models.Modality{models.ModalityTable}, modalities("a.xlsx"))
	assert.Equal(t, []models.Modality{models.ModalityText}, modalities("notes.txt"))
	assert.Equal(t, []models.Modality{models.ModalityText}, modalities("mail.eml"))
	assert.Empty(t, modalities("a.rtf"))
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	path := writePDF(t, f.dir, "contract.pdf", "The contract term is twelve months")
	_, err := f.pipeline.IngestFile(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, f.pipeline.Reset(context.Background()))

	for _, s := range []*store.Memory{f.text, f.images} {
		results, err := s.Query(context.Background(), "contract", 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	}
}

func TestSaveUpload(t *testing.T) {
	dir := t.TempDir()

	path, err := ingest.SaveUpload(dir, "../../etc/report.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.pdf"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	// same name replaces the previous upload
	_, err = ingest.SaveUpload(dir, "report.pdf", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	_, err = ingest.SaveUpload(dir, "notes.docx", strings.NewReader("x"))
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)

	_, err = ingest.SaveUpload(filepath.Join(dir, "missing"), "a.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, types.ErrPathNotFound)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTextIngestorSkipsBlankWindows(t *testing.T) {
	c, err := processor.NewChunker(processor.ProcessorConfig{Type: "fixed", ChunkSize: 10, ChunkOverlap: 2}, nil)
	require.NoError(t, err)
	ing := &ingest.TextIngestor{
		Load: func(_ context.Context, path string) ([]models.RawUnit, error) {
			return []models.RawUnit{{Modality: models.ModalityText, Text: "alpha" + strings.Repeat("\n", 30) + "omega", Source: path}}, nil
		},
		Chunker: c,
	}

	units, err := ing.Extract(context.Background(), "/data/scan.pdf")
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.True(t, strings.HasPrefix(units[0].Text, "alpha"))
	assert.True(t, strings.HasSuffix(units[1].Text, "omega"))
}
