package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wha7/wha7/pkg/client"
)

func chatServer(t *testing.T, content string, got *map[string]any) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		if got != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":   "minicpm-v",
			"message": map[string]any{"role": "assistant", "content": content},
			"done":    true,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPredictByBytesRegions(t *testing.T) {
	var got map[string]any
	srv := chatServer(t, `{"regions":[{"box":{"top":0.1,"left":0.2,"bottom":0.9,"right":0.8},"concepts":[{"name":"Dress","confidence":0.91}]}]}`, &got)

	// The path of the configured URL is dropped; the API client adds its own.
	c, err := NewClient(srv.URL+"/api/chat", "minicpm-v", client.TaskApparelDetection)
	require.NoError(t, err)

	pred, err := c.PredictByBytes(context.Background(), []byte("\x89PNG\r\n\x1a\n0000"))
	require.NoError(t, err)
	require.Len(t, pred.Regions, 1)
	assert.Equal(t, "dress", pred.Regions[0].Concepts[0].Name)
	assert.InDelta(t, 0.8, pred.Regions[0].Box.Right, 1e-9)

	assert.Equal(t, "minicpm-v", got["model"])
	assert.Equal(t, "json", got["format"])
	assert.Equal(t, false, got["stream"])
	options := got["options"].(map[string]any)
	assert.EqualValues(t, 4096, options["num_ctx"])
}

func TestPredictEmptyResponse(t *testing.T) {
	srv := chatServer(t, "  ", nil)

	c, err := NewClient(srv.URL, "llava", client.TaskGender)
	require.NoError(t, err)
	_, err = c.PredictByBytes(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, client.ErrNoOutput)
}

func TestNewClientInvalidURL(t *testing.T) {
	_, err := NewClient("://bad", "llava", client.TaskGender)
	assert.Error(t, err)
}
