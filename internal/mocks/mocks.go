// Package mocks provides in-process fakes of the model services for tests.
package mocks

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
)

// Embedder hashes lower-cased words into Dim buckets and normalises the result,
// so texts sharing words are close under cosine similarity.
type Embedder struct {
	Dim int
	Err error

	mu    sync.Mutex
	calls int
}

func NewEmbedder() *Embedder {
	return &Embedder{Dim: 64}
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := e.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.Err != nil {
		return nil, e.Err
	}

	dim := e.Dim
	if dim == 0 {
		dim = 64
	}
	v := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(dim)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v, nil
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v, nil
}

// Calls returns how many texts were embedded.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Model is a LanguageModel that records every call.
type Model struct {
	Name  string
	Reply string
	Err   error

	mu      sync.Mutex
	Prompts []string
	Images  [][]string
}

func (m *Model) Complete(_ context.Context, prompt string, images []string) (*models.Completion, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.Images = append(m.Images, images)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	reply := m.Reply
	if reply == "" {
		reply = "answer"
	}
	promptTokens := len(strings.Fields(prompt)) + 85*len(images)
	completionTokens := len(strings.Fields(reply))
	return &models.Completion{
		Text:             reply,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}, nil
}

func (m *Model) ModelName() string {
	if m.Name == "" {
		return "fake-model"
	}
	return m.Name
}

// Calls returns the number of recorded completions.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// ErrCaption is returned by Captioner for images listed in FailOn.
var ErrCaption = errors.New("captioning failed")

// Captioner returns canned captions and summaries.
type Captioner struct {
	Text        string
	Description string
	// Raw, when set, is returned unparsed instead of a caption.
	Raw        string
	Summary    string
	SummaryErr error
	// FailOn lists base64 payloads that make DescribeImage fail.
	FailOn map[string]bool

	mu     sync.Mutex
	images int
	tables int
}

func (c *Captioner) DescribeImage(_ context.Context, b64Image string) (*types.Caption, string, error) {
	c.mu.Lock()
	c.images++
	c.mu.Unlock()

	if c.FailOn[b64Image] {
		return nil, "", ErrCaption
	}
	if c.Raw != "" {
		return nil, c.Raw, nil
	}
	caption := &types.Caption{ExtractedText: c.Text, ImageDescription: c.Description}
	if caption.ImageDescription == "" {
		caption.ImageDescription = "an image"
	}
	raw, _ := json.Marshal(caption)
	return caption, string(raw), nil
}

func (c *Captioner) SummarizeTable(_ context.Context, serialized string) (string, error) {
	c.mu.Lock()
	c.tables++
	c.mu.Unlock()

	if c.SummaryErr != nil {
		return "", c.SummaryErr
	}
	if c.Summary != "" {
		return c.Summary, nil
	}
	return "table summary", nil
}

// ImageCalls returns how many images were described.
func (c *Captioner) ImageCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.images
}

// TableCalls returns how many tables were summarized.
func (c *Captioner) TableCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tables
}

// Rasterizer writes Pages placeholder PNG files next to the PDF.
type Rasterizer struct {
	Pages int
	Err   error
}

func (r *Rasterizer) Rasterize(_ context.Context, pdfPath string) (string, []string, error) {
	if r.Err != nil {
		return "", nil, r.Err
	}
	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	dir := filepath.Join(filepath.Dir(pdfPath), "images-"+stem)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, err
	}

	pages := make([]string, 0, r.Pages)
	for i := 1; i <= r.Pages; i++ {
		path := filepath.Join(dir, "page_"+strconv.Itoa(i)+".png")
		if err := os.WriteFile(path, PNG, 0644); err != nil {
			return "", nil, err
		}
		pages = append(pages, path)
	}
	return dir, pages, nil
}

// PNG is a 1x1 transparent image.
var PNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}
