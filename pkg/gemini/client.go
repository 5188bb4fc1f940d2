package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/wha7/wha7/pkg/client"
	"github.com/wha7/wha7/pkg/types"
)

// Client runs one vision task against the Gemini API.
type Client struct {
	genai      *genai.Client
	model      string
	prompt     string
	httpClient *http.Client
}

// NewClient creates a Gemini-backed model. Close releases the underlying connection.
func NewClient(ctx context.Context, apiKey, model string, task client.Task) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &Client{
		genai:      cl,
		model:      strings.TrimSpace(model),
		prompt:     client.PromptFor(task),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) Close() error { return c.genai.Close() }

// PredictByURL downloads the image and sends it inline.
func (c *Client) PredictByURL(ctx context.Context, imageURL string) (*types.Prediction, error) {
	data, _, err := client.FetchImage(ctx, c.httpClient, imageURL)
	if err != nil {
		return nil, err
	}
	return c.PredictByBytes(ctx, data)
}

func (c *Client) PredictByBytes(ctx context.Context, data []byte) (*types.Prediction, error) {
	m := c.genai.GenerativeModel(c.model)
	temp := float32(0)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(c.prompt)}}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}

	resp, err := m.GenerateContent(ctx, &genai.Blob{MIMEType: mime, Data: data})
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	txt := firstText(resp)
	if txt == "" {
		return nil, fmt.Errorf("gemini: %w", client.ErrNoOutput)
	}
	return client.ParsePrediction(txt)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok && strings.TrimSpace(string(t)) != "" {
				return string(t)
			}
		}
	}
	return ""
}
