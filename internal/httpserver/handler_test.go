package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wha7/wha7/pkg/pipeline"
	"github.com/wha7/wha7/pkg/types"
)

type fakeProcessor struct {
	got types.InboundMessage
	res *pipeline.Result
	err error
}

func (f *fakeProcessor) Process(_ context.Context, msg types.InboundMessage) (*pipeline.Result, error) {
	f.got = msg
	if f.err != nil {
		return nil, f.err
	}
	if len(msg.Images) == 0 {
		return nil, pipeline.ErrNoImages
	}
	return f.res, nil
}

func newTestRouter(p MessageProcessor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewHandler(p, 1<<20, zap.NewNop()))
}

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		ID:     "abc",
		Gender: types.Women,
		Images: 1,
		Candidates: []types.Candidate{{
			ConceptName: "jacket",
			CategoryID:  "63862",
			TopLinks:    []string{"https://ebay.com/itm/1&mkcid=1"},
		}},
	}
}

func TestSearchJSON(t *testing.T) {
	proc := &fakeProcessor{res: sampleResult()}
	router := newTestRouter(proc)

	body := `{"sender":"+15550100","image_urls":["https://img.example/a.jpg"],"text":"love this"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "+15550100", proc.got.Sender)
	assert.Equal(t, "love this", proc.got.Text)
	assert.Equal(t, []types.ImageRef{{URL: "https://img.example/a.jpg"}}, proc.got.Images)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "abc", resp.ID)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "63862", resp.Items[0].CategoryID)
	assert.Equal(t, []string{"Jacket:\n1. https://ebay.com/itm/1&mkcid=1\n"}, resp.Replies)
}

func TestSearchMultipart(t *testing.T) {
	proc := &fakeProcessor{res: sampleResult()}
	router := newTestRouter(proc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("sender", "tg:1"))
	fw, err := mw.CreateFormFile("images", "look.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("\x89PNG fake"))
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/search", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, proc.got.Images, 1)
	assert.Equal(t, "image/png", proc.got.Images[0].ContentType)
	assert.Equal(t, "look.png", proc.got.Images[0].Name)
	assert.Equal(t, []byte("\x89PNG fake"), proc.got.Images[0].Data)
}

func TestSearchRejectsBadInput(t *testing.T) {
	router := newTestRouter(&fakeProcessor{res: sampleResult()})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"sender":`},
		{"missing sender", `{"image_urls":["https://a"]}`},
		{"no images", `{"sender":"s"}`},
		{"too many urls", `{"sender":"s","image_urls":["https://a/1","https://a/2","https://a/3","https://a/4","https://a/5",` +
			`"https://a/6","https://a/7","https://a/8","https://a/9","https://a/10","https://a/11"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSearchRejectsNonImageUpload(t *testing.T) {
	router := newTestRouter(&fakeProcessor{res: sampleResult()})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("sender", "s"))
	fw, err := mw.CreateFormFile("images", "notes.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("hello"))
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/search", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func multipartBody(t *testing.T, files int, size int) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("sender", "s"))
	for i := 0; i < files; i++ {
		fw, err := mw.CreateFormFile("images", "look.jpg")
		require.NoError(t, err)
		_, _ = fw.Write(bytes.Repeat([]byte{0xff}, size))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSearchBoundsRequestSize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	proc := &fakeProcessor{res: sampleResult()}
	small := NewRouter(NewHandler(proc, 1024, zap.NewNop()))

	t.Run("oversized multipart body", func(t *testing.T) {
		body, ct := multipartBody(t, 1, 2<<20)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/search", body)
		req.Header.Set("Content-Type", ct)
		small.ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("too many files", func(t *testing.T) {
		body, ct := multipartBody(t, 11, 16)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/search", body)
		req.Header.Set("Content-Type", ct)
		small.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("oversized json body", func(t *testing.T) {
		body := `{"sender":"s","text":"` + strings.Repeat("a", 128<<10) + `"}`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		small.ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	assert.Empty(t, proc.got.Images)
}

func TestSearchProcessorError(t *testing.T) {
	router := newTestRouter(&fakeProcessor{err: errors.New("boom")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"sender":"s","image_urls":["https://a"]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(&fakeProcessor{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"OK"}`, w.Body.String())
}
