package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/wha7/wha7/pkg/client"
	"github.com/wha7/wha7/pkg/types"
)

// Client runs one vision task against a local Ollama server.
type Client struct {
	client     *api.Client
	httpClient *http.Client
	model      string
	prompt     string
}

// NewClient creates a new Ollama-backed model for the given task.
func NewClient(ollamaURL, model string, task client.Task) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	// Create base URL from the provided URL (removing path like /api/chat)
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{
		client:     api.NewClient(baseURL, http.DefaultClient),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		model:      model,
		prompt:     client.PromptFor(task),
	}, nil
}

// PredictByURL downloads the image and runs the task on it.
func (c *Client) PredictByURL(ctx context.Context, imageURL string) (*types.Prediction, error) {
	data, _, err := client.FetchImage(ctx, c.httpClient, imageURL)
	if err != nil {
		return nil, err
	}
	return c.PredictByBytes(ctx, data)
}

// PredictByBytes runs the task on encoded image bytes.
func (c *Client) PredictByBytes(ctx context.Context, data []byte) (*types.Prediction, error) {
	// Add timeout if context doesn't have one (vision models are slow on CPU)
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	options := map[string]any{"temperature": 0}

	modelLower := strings.ToLower(c.model)
	if strings.Contains(modelLower, "minicpm-v") {
		options["num_ctx"] = 4096
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: c.prompt,
				Images:  []api.ImageData{api.ImageData(data)},
			},
		},
		Stream:  &streamFalse,
		Format:  []byte(`"json"`),
		Options: options,
	}

	var responseContent string
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent += resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat error: %w", err)
	}
	if strings.TrimSpace(responseContent) == "" {
		return nil, fmt.Errorf("ollama: %w", client.ErrNoOutput)
	}

	return client.ParsePrediction(responseContent)
}
