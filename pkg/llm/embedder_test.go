package llm_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/ragmodes/internal/types"
	"github.com/xhad/ragmodes/pkg/llm"
)

func TestNewEmbedder(t *testing.T) {
	emb, err := llm.NewEmbedder(llm.EmbedderConfig{Provider: "ollama", BaseURL: "http://localhost:11434"})
	require.NoError(t, err)
	assert.NotNil(t, emb)

	emb, err = llm.NewEmbedder(llm.EmbedderConfig{Provider: "openai", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.NotNil(t, emb)

	_, err = llm.NewEmbedder(llm.EmbedderConfig{Provider: "cohere"})
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)
}

func TestOpenAIEmbeddings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		data := make([]string, len(req.Input))
		for i := range req.Input {
			data[i] = fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":[%d,0.5,0.25]}`, i, i+1)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"object":"list","model":%q,"data":[%s],"usage":{"prompt_tokens":3,"total_tokens":3}}`,
			req.Model, strings.Join(data, ","))
	}))
	defer server.Close()

	emb, err := llm.NewEmbedder(llm.EmbedderConfig{
		Provider: "openai",
		Model:    "text-embedding-3-small",
		APIKey:   "sk-test",
		BaseURL:  server.URL,
	})
	require.NoError(t, err)

	vectors, err := emb.EmbedDocuments(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0.5, 0.25}, vectors[0])
	assert.Equal(t, []float32{2, 0.5, 0.25}, vectors[1])

	query, err := emb.EmbedQuery(context.Background(), "first")
	require.NoError(t, err)
	assert.Len(t, query, 3)
}
