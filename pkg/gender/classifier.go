package gender

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/wha7/wha7/pkg/client"
	"github.com/wha7/wha7/pkg/detection"
	"github.com/wha7/wha7/pkg/processing"
	"github.com/wha7/wha7/pkg/types"
)

// DefaultGender is used when no face in a message can be classified.
const DefaultGender = types.Women

// Classifier decides the single gender applied to every item of a message.
type Classifier struct {
	faces     client.ModelClient
	genders   client.ModelClient
	processor *processing.Processor
	threshold float64
	fallback  types.Gender
	logger    *zap.Logger
}

// NewClassifier creates a classifier from a face detection model and a gender model.
// fallback must be Men or Women; anything else selects DefaultGender. A non-positive
// threshold selects detection.DefaultThreshold, as for the region detector.
func NewClassifier(faces, genders client.ModelClient, processor *processing.Processor, threshold float64, fallback types.Gender, logger *zap.Logger) *Classifier {
	if processor == nil {
		processor = processing.NewProcessor()
	}
	if threshold <= 0 {
		threshold = detection.DefaultThreshold
	}
	if fallback != types.Men && fallback != types.Women {
		fallback = DefaultGender
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		faces:     faces,
		genders:   genders,
		processor: processor,
		threshold: threshold,
		fallback:  fallback,
		logger:    logger,
	}
}

// Fallback returns the gender reported when classification fails.
func (c *Classifier) Fallback() types.Gender { return c.fallback }

// Classify walks the images in order and returns the gender of the first face that
// classifies successfully. Every failure path returns the configured fallback.
func (c *Classifier) Classify(ctx context.Context, images []types.SourceImage) types.Gender {
	for _, src := range images {
		if ctx.Err() != nil {
			break
		}

		faces, err := c.detectFaces(ctx, src)
		if err != nil {
			c.logger.Warn("face detection failed", zap.Int("image", src.Index), zap.Error(err))
			continue
		}

		for _, face := range faces {
			g, ok := c.classifyFace(ctx, src, face)
			if ok {
				c.logger.Debug("gender resolved", zap.Int("image", src.Index), zap.String("gender", string(g)))
				return g
			}
		}
	}

	c.logger.Debug("gender fallback", zap.String("gender", string(c.fallback)))
	return c.fallback
}

func (c *Classifier) detectFaces(ctx context.Context, src types.SourceImage) ([]types.DetectedRegion, error) {
	var (
		pred *types.Prediction
		err  error
	)
	if src.PublicURL != "" {
		pred, err = c.faces.PredictByURL(ctx, src.PublicURL)
	} else {
		var data []byte
		data, err = c.processor.PrepareForModel(src.Image, 90)
		if err != nil {
			return nil, err
		}
		pred, err = c.faces.PredictByBytes(ctx, data)
	}
	if err != nil {
		return nil, err
	}

	var faces []types.DetectedRegion
	for _, region := range pred.Regions {
		for _, concept := range region.Concepts {
			if concept.Confidence > c.threshold {
				faces = append(faces, region)
				break
			}
		}
	}
	return faces, nil
}

func (c *Classifier) classifyFace(ctx context.Context, src types.SourceImage, face types.DetectedRegion) (types.Gender, bool) {
	crop, err := processing.Crop(src.Image, face.Box)
	if err != nil {
		c.logger.Debug("face crop rejected", zap.Int("image", src.Index), zap.Error(err))
		return "", false
	}
	data, err := processing.EncodePNG(crop)
	if err != nil {
		c.logger.Warn("face encode failed", zap.Error(err))
		return "", false
	}

	pred, err := c.genders.PredictByBytes(ctx, data)
	if err != nil {
		c.logger.Warn("gender classification failed", zap.Int("image", src.Index), zap.Error(err))
		return "", false
	}

	top, ok := topConcept(pred)
	if !ok {
		return "", false
	}
	if strings.EqualFold(top.Name, "masculine") {
		return types.Men, true
	}
	return types.Women, true
}

// topConcept returns the highest-confidence concept of a classification, looking at
// region concepts when the model reports none at image level.
func topConcept(pred *types.Prediction) (types.Concept, bool) {
	concepts := pred.Concepts
	if len(concepts) == 0 {
		for _, r := range pred.Regions {
			concepts = append(concepts, r.Concepts...)
		}
	}
	if len(concepts) == 0 {
		return types.Concept{}, false
	}

	best := concepts[0]
	for _, concept := range concepts[1:] {
		if concept.Confidence > best.Confidence {
			best = concept
		}
	}
	return best, true
}
