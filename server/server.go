// Package server exposes upload, query and websocket endpoints over the
// ingestion pipeline and the two-mode comparer.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xhad/ragmodes/internal/logger"
	"github.com/xhad/ragmodes/internal/models"
	"github.com/xhad/ragmodes/internal/types"
	"github.com/xhad/ragmodes/pkg/ingest"
)

const maxUploadSize = 64 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Comparer answers a query in both retrieval modes.
type Comparer interface {
	Compare(ctx context.Context, query string) (*models.Comparison, error)
}

// Ingester stores a file from the data directory in both collections.
type Ingester interface {
	IngestFile(ctx context.Context, path string) (*ingest.Report, error)
	DataDir() string
}

type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

type Server struct {
	comparer Comparer
	ingester Ingester
	mux      *http.ServeMux
}

func New(comparer Comparer, ingester Ingester) *Server {
	s := &Server{comparer: comparer, ingester: ingester, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /query", s.handleQuery)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type uploadResponse struct {
	Report *ingest.Report `json:"report,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Error: fmt.Sprintf("missing file field: %v", err)})
		return
	}
	defer file.Close()

	path, err := ingest.SaveUpload(s.ingester.DataDir(), header.Filename, file)
	if err != nil {
		writeJSON(w, statusFor(err), uploadResponse{Error: err.Error()})
		return
	}

	report, err := s.ingester.IngestFile(r.Context(), path)
	if err != nil {
		logger.Error("Ingesting %s: %v", header.Filename, err)
		writeJSON(w, statusFor(err), uploadResponse{Report: report, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Report: report})
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	result, err := s.comparer.Compare(r.Context(), req.Query)
	if err != nil {
		logger.Error("Query failed: %v", err)
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// wsConn serialises writes; gorilla connections allow one writer at a time.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msgType, content string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(Message{Type: msgType, Content: content, Data: data}); err != nil {
		logger.Warn("Error sending message: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ws := &wsConn{conn: conn}
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Error reading message: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			ws.send("error", "invalid message", nil)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(r.Context(), ws, msg)
		}()
	}
}

func (s *Server) handleMessage(ctx context.Context, ws *wsConn, msg Message) {
	switch msg.Type {
	case "query", "":
		query := strings.TrimSpace(msg.Content)
		if query == "" {
			ws.send("error", "query is required", nil)
			return
		}
		ws.send("status", "Processing query", nil)
		result, err := s.comparer.Compare(ctx, query)
		if err != nil {
			ws.send("error", err.Error(), nil)
			return
		}
		ws.send("response", result.Text.Response, result)

	case "ingest":
		name := filepath.Base(filepath.Clean("/" + msg.Content))
		ws.send("status", fmt.Sprintf("Ingesting %s", name), nil)
		report, err := s.ingester.IngestFile(ctx, filepath.Join(s.ingester.DataDir(), name))
		if err != nil {
			ws.send("error", err.Error(), report)
			return
		}
		ws.send("ingested", strings.Join(report.Messages, "\n"), report)

	default:
		ws.send("error", fmt.Sprintf("unknown message type: %s", msg.Type), nil)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, types.ErrPathNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Error writing response: %v", err)
	}
}
