package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wha7/wha7/pkg/client"
	"github.com/wha7/wha7/pkg/processing"
	"github.com/wha7/wha7/pkg/types"
)

// DefaultThreshold is the minimum confidence a concept must exceed to become a candidate.
const DefaultThreshold = 0.8

// Detector finds clothing regions in images using a detection model
type Detector struct {
	client    client.ModelClient
	processor *processing.Processor
	threshold float64
	logger    *zap.Logger
}

// NewDetector creates a new detector with a model client.
// A non-positive threshold selects DefaultThreshold.
func NewDetector(c client.ModelClient, processor *processing.Processor, threshold float64, logger *zap.Logger) *Detector {
	if processor == nil {
		processor = processing.NewProcessor()
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{client: c, processor: processor, threshold: threshold, logger: logger}
}

// Threshold returns the confidence threshold used by Candidates.
func (d *Detector) Threshold() float64 { return d.threshold }

// Detect runs the detection model on one image. The public URL is preferred; without one
// the image is sent as bytes. Model failures are logged and yield no regions.
func (d *Detector) Detect(ctx context.Context, src types.SourceImage) []types.DetectedRegion {
	pred, err := d.predict(ctx, src)
	if err != nil {
		d.logger.Warn("region detection failed",
			zap.Int("image", src.Index),
			zap.Error(err),
		)
		return nil
	}

	d.logger.Debug("regions detected",
		zap.Int("image", src.Index),
		zap.Int("regions", len(pred.Regions)),
	)
	return pred.Regions
}

func (d *Detector) predict(ctx context.Context, src types.SourceImage) (*types.Prediction, error) {
	if src.PublicURL != "" {
		return d.client.PredictByURL(ctx, src.PublicURL)
	}
	if src.Image == nil {
		return nil, fmt.Errorf("image %d has neither a public URL nor decoded pixels", src.Index)
	}
	data, err := d.processor.PrepareForModel(src.Image, 90)
	if err != nil {
		return nil, err
	}
	return d.client.PredictByBytes(ctx, data)
}

// Candidates thresholds the regions of one image and crops every surviving concept.
// Regions that cannot be cropped are logged and skipped.
func (d *Detector) Candidates(src types.SourceImage, regions []types.DetectedRegion) []types.Candidate {
	candidates, err := ExtractCandidates(src, regions, d.threshold)
	if err != nil {
		d.logger.Warn("skipped regions while cropping",
			zap.Int("image", src.Index),
			zap.Error(err),
		)
	}
	return candidates
}

// ExtractCandidates keeps every concept whose confidence is strictly greater than threshold
// and emits one candidate per kept concept, cropped from the original image. Concepts of the
// same region share a single crop. Crop failures are joined into the returned error.
func ExtractCandidates(src types.SourceImage, regions []types.DetectedRegion, threshold float64) ([]types.Candidate, error) {
	var (
		candidates []types.Candidate
		errs       []error
	)

	for i, region := range regions {
		var kept []types.Concept
		for _, concept := range region.Concepts {
			name := strings.ToLower(strings.TrimSpace(concept.Name))
			if name == "" || concept.Confidence <= threshold {
				continue
			}
			kept = append(kept, types.Concept{Name: name, Confidence: concept.Confidence})
		}
		if len(kept) == 0 {
			continue
		}

		crop, err := processing.Crop(src.Image, region.Box)
		if err != nil {
			errs = append(errs, fmt.Errorf("region %d: %w", i, err))
			continue
		}

		for _, concept := range kept {
			candidates = append(candidates, types.Candidate{
				SourceIndex: src.Index,
				SourceURL:   src.PublicURL,
				Box:         region.Box,
				Crop:        crop,
				ConceptName: concept.Name,
				Confidence:  concept.Confidence,
			})
		}
	}

	return candidates, errors.Join(errs...)
}
