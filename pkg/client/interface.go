package client

import (
	"context"
	"errors"

	"github.com/wha7/wha7/pkg/types"
)

// ErrNoOutput is returned when a model answers without any usable output.
var ErrNoOutput = errors.New("model returned no output")

// ModelClient is a remote vision model. Detection models fill Prediction.Regions,
// classification models fill Prediction.Concepts.
type ModelClient interface {
	PredictByURL(ctx context.Context, url string) (*types.Prediction, error)
	PredictByBytes(ctx context.Context, data []byte) (*types.Prediction, error)
}

// Task selects what a prompt-driven backend is asked to do.
type Task string

const (
	TaskApparelDetection Task = "apparel-detection"
	TaskApparelTagging   Task = "apparel-classification"
	TaskFaceDetection    Task = "face-detection"
	TaskGender           Task = "gender"
)
