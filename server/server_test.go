package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
	"github.com/xhad/ragmodes/pkg/ingest"
	"github.com/xhad/ragmodes/server"
)

type fakeComparer struct {
	mu      sync.Mutex
	err     error
	queries []string
}

func (f *fakeComparer) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeComparer) Compare(_ context.Context, query string) (*models.Comparison, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Comparison{
		Model: "fake-model",
		Query: query,
		Text:  &models.Answer{Mode: models.ModeText, Response: "12 months", TotalTokens: 10},
		Image: &models.Answer{Mode: models.ModeImage, Response: "twelve months", TotalTokens: 200},
	}, nil
}

type fakeIngester struct {
	dir string

	mu    sync.Mutex
	paths []string
}

func (f *fakeIngester) DataDir() string { return f.dir }

func (f *fakeIngester) ingested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func (f *fakeIngester) IngestFile(_ context.Context, path string) (*ingest.Report, error) {
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	report := &ingest.Report{File: filepath.Base(path)}
	if _, err := os.Stat(path); err != nil {
		report.Messages = []string{"Error: file does not exist."}
		return report, types.PathNotFound("file", path)
	}
	report.Messages = []string{"File ready to use"}
	return report, nil
}

func newServer(t *testing.T) (*httptest.Server, *fakeComparer, *fakeIngester) {
	t.Helper()
	comparer := &fakeComparer{}
	ingester := &fakeIngester{dir: t.TempDir()}
	ts := httptest.NewServer(server.New(comparer, ingester).Handler())
	t.Cleanup(ts.Close)
	return ts, comparer, ingester
}

func TestHealth(t *testing.T) {
	ts, _, _ := newServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQuery(t *testing.T) {
	ts, comparer, _ := newServer(t)

	resp, err := http.Post(ts.URL+"/query", "application/json", strings.NewReader(`{"query": "How long is the term?"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.Comparison
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "fake-model", result.Model)
	assert.Equal(t, "12 months", result.Text.Response)
	assert.Equal(t, "twelve months", result.Image.Response)
	assert.Equal(t, []string{"How long is the term?"}, comparer.queries)
}

func TestQueryErrors(t *testing.T) {
	ts, comparer, _ := newServer(t)

	resp, err := http.Post(ts.URL+"/query", "application/json", strings.NewReader(`{"query": ""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/query", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	comparer.fail(fmt.Errorf("text mode: %w", types.ErrExternalService))
	resp, err = http.Post(ts.URL+"/query", "application/json", strings.NewReader(`{"query": "q"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/query")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func upload(t *testing.T, url, name string, body []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func TestUpload(t *testing.T) {
	ts, _, ingester := newServer(t)

	resp := upload(t, ts.URL, "contract.pdf", []byte("%PDF-1.4"))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Report ingest.Report `json:"report"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "contract.pdf", body.Report.File)
	assert.Equal(t, []string{"File ready to use"}, body.Report.Messages)

	paths := ingester.ingested()
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(ingester.dir, "contract.pdf"), paths[0])
	assert.FileExists(t, paths[0])
}

func TestUploadRejectsNonPDF(t *testing.T) {
	ts, _, ingester := newServer(t)

	resp := upload(t, ts.URL, "notes.docx", []byte("PK"))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Empty(t, ingester.ingested())
}

func TestUploadMissingField(t *testing.T) {
	ts, _, _ := newServer(t)

	resp, err := http.Post(ts.URL+"/upload", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func read(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketQuery(t *testing.T) {
	ts, _, _ := newServer(t)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(server.Message{Type: "query", Content: "How long is the term?"}))

	status := read(t, conn)
	assert.Equal(t, "status", status["type"])

	resp := read(t, conn)
	assert.Equal(t, "response", resp["type"])
	assert.Equal(t, "12 months", resp["content"])
	data := resp["data"].(map[string]any)
	assert.Equal(t, "How long is the term?", data["query"])
}

func TestWebSocketQueryError(t *testing.T) {
	ts, comparer, _ := newServer(t)
	comparer.fail(errors.New("model unavailable"))
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(server.Message{Type: "query", Content: "q"}))
	assert.Equal(t, "status", read(t, conn)["type"])

	msg := read(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Contains(t, msg["content"], "model unavailable")
}

func TestWebSocketIngest(t *testing.T) {
	ts, _, ingester := newServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(ingester.dir, "contract.pdf"), []byte("%PDF"), 0644))
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(server.Message{Type: "ingest", Content: "../contract.pdf"}))
	assert.Equal(t, "status", read(t, conn)["type"])

	msg := read(t, conn)
	assert.Equal(t, "ingested", msg["type"])
	assert.Equal(t, "File ready to use", msg["content"])
	assert.Equal(t, []string{filepath.Join(ingester.dir, "contract.pdf")}, ingester.ingested())

	require.NoError(t, conn.WriteJSON(server.Message{Type: "ingest", Content: "missing.pdf"}))
	assert.Equal(t, "status", read(t, conn)["type"])
	assert.Equal(t, "error", read(t, conn)["type"])
}

func TestWebSocketUnknownType(t *testing.T) {
	ts, _, _ := newServer(t)
	conn := dial(t, ts)

	require.NoError(t, conn.WriteJSON(server.Message{Type: "scrape", Content: "https://example.com"}))
	msg := read(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Contains(t, msg["content"], "scrape")
}
