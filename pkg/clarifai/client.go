package clarifai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wha7/wha7/pkg/client"
	"github.com/wha7/wha7/pkg/types"
)

// DefaultBaseURL is the public Clarifai API.
const DefaultBaseURL = "https://api.clarifai.com"

// Public community models used by the pipeline.
const (
	ModelApparelDetection      = "apparel-detection"
	ModelApparelClassification = "apparel-classification-v2"
	ModelFaceDetection         = "face-detection"
	ModelGenderDemographics    = "gender-demographics-recognition"
)

const statusSuccess = 10000

// Model calls one Clarifai model through the v2 REST outputs endpoint.
type Model struct {
	baseURL    string
	pat        string
	userID     string
	appID      string
	modelID    string
	httpClient *http.Client
}

// Options identifies the model owner. Empty values default to the clarifai/main app.
type Options struct {
	BaseURL string
	PAT     string
	UserID  string
	AppID   string
	Timeout time.Duration
}

// NewModel creates a client for a single model.
func NewModel(opts Options, modelID string) (*Model, error) {
	if opts.PAT == "" {
		return nil, fmt.Errorf("clarifai: personal access token is empty")
	}
	if modelID == "" {
		return nil, fmt.Errorf("clarifai: model id is empty")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserID == "" {
		opts.UserID = "clarifai"
	}
	if opts.AppID == "" {
		opts.AppID = "main"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Model{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		pat:        opts.PAT,
		userID:     opts.UserID,
		appID:      opts.AppID,
		modelID:    modelID,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}, nil
}

type imageData struct {
	URL    string `json:"url,omitempty"`
	Base64 string `json:"base64,omitempty"`
}

type input struct {
	Data struct {
		Image imageData `json:"image"`
	} `json:"data"`
}

type predictRequest struct {
	Inputs []input `json:"inputs"`
}

type status struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

type concept struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type region struct {
	RegionInfo struct {
		BoundingBox struct {
			TopRow    float64 `json:"top_row"`
			LeftCol   float64 `json:"left_col"`
			BottomRow float64 `json:"bottom_row"`
			RightCol  float64 `json:"right_col"`
		} `json:"bounding_box"`
	} `json:"region_info"`
	Data struct {
		Concepts []concept `json:"concepts"`
	} `json:"data"`
}

type predictResponse struct {
	Status  status `json:"status"`
	Outputs []struct {
		Status status `json:"status"`
		Data   struct {
			Concepts []concept `json:"concepts"`
			Regions  []region  `json:"regions"`
		} `json:"data"`
	} `json:"outputs"`
}

// PredictByURL runs the model on a publicly fetchable image URL.
func (m *Model) PredictByURL(ctx context.Context, url string) (*types.Prediction, error) {
	var in input
	in.Data.Image.URL = url
	return m.predict(ctx, in)
}

// PredictByBytes runs the model on encoded image bytes.
func (m *Model) PredictByBytes(ctx context.Context, data []byte) (*types.Prediction, error) {
	var in input
	in.Data.Image.Base64 = base64.StdEncoding.EncodeToString(data)
	return m.predict(ctx, in)
}

func (m *Model) predict(ctx context.Context, in input) (*types.Prediction, error) {
	endpoint := fmt.Sprintf("%s/v2/users/%s/apps/%s/models/%s/outputs", m.baseURL, m.userID, m.appID, m.modelID)
	body, err := m.sendRequest(ctx, endpoint, predictRequest{Inputs: []input{in}})
	if err != nil {
		return nil, fmt.Errorf("clarifai %s: %w", m.modelID, err)
	}

	var resp predictResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("clarifai %s: failed to parse response: %w", m.modelID, err)
	}
	if resp.Status.Code != statusSuccess {
		return nil, fmt.Errorf("clarifai %s: status %d: %s", m.modelID, resp.Status.Code, resp.Status.Description)
	}
	if len(resp.Outputs) == 0 {
		return nil, fmt.Errorf("clarifai %s: %w", m.modelID, client.ErrNoOutput)
	}

	out := resp.Outputs[0].Data
	pred := &types.Prediction{
		Concepts: toConcepts(out.Concepts),
		Regions:  make([]types.DetectedRegion, 0, len(out.Regions)),
	}
	for _, r := range out.Regions {
		bb := r.RegionInfo.BoundingBox
		pred.Regions = append(pred.Regions, types.DetectedRegion{
			Box: types.Box{
				Top:    bb.TopRow,
				Left:   bb.LeftCol,
				Bottom: bb.BottomRow,
				Right:  bb.RightCol,
			},
			Concepts: toConcepts(r.Data.Concepts),
		})
	}
	return pred, nil
}

func toConcepts(in []concept) []types.Concept {
	out := make([]types.Concept, 0, len(in))
	for _, c := range in {
		out = append(out, types.Concept{Name: c.Name, Confidence: c.Value})
	}
	return out
}

func (m *Model) sendRequest(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+m.pat)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
