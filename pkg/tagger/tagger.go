package tagger

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/wha7/wha7/pkg/client"
	"github.com/wha7/wha7/pkg/processing"
	"github.com/wha7/wha7/pkg/types"
)

// ErrNoCrop is returned for candidates without a cropped image.
var ErrNoCrop = errors.New("candidate has no crop")

var namePattern = regexp.MustCompile(`name:\s*"([^"]*)"`)

// Tagger labels cropped items with a fine-grained garment concept.
type Tagger struct {
	client     client.ModelClient
	styleTerms bool
	logger     *zap.Logger
}

// New creates a tagger. With styleTerms enabled, stylistic attributes are recorded in
// Candidate.Style and skipped when choosing the garment tag.
func New(c client.ModelClient, styleTerms bool, logger *zap.Logger) *Tagger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tagger{client: c, styleTerms: styleTerms, logger: logger}
}

// Tag classifies the candidate's crop and fills Tags (and Style when enabled).
// A model answering without concepts leaves the candidate untouched and is not an error.
func (t *Tagger) Tag(ctx context.Context, c *types.Candidate) error {
	if c.Crop == nil {
		return ErrNoCrop
	}
	data, err := processing.EncodePNG(c.Crop)
	if err != nil {
		return err
	}

	pred, err := t.client.PredictByBytes(ctx, data)
	if err != nil {
		return err
	}

	names := conceptNames(pred)
	if len(names) == 0 {
		t.logger.Debug("tagger returned no concepts", zap.String("concept", c.ConceptName))
		return nil
	}

	if !t.styleTerms {
		c.Tags = names[0]
		return nil
	}
	for _, name := range names {
		if IsStyleTerm(name) {
			if c.Style == "" {
				c.Style = name
			}
			continue
		}
		if c.Tags == "" {
			c.Tags = name
		}
	}
	return nil
}

// conceptNames lists the normalized concept names of a prediction in model order,
// recovering them from the raw text when the backend did not answer with structured output.
func conceptNames(pred *types.Prediction) []string {
	var names []string
	add := func(name string) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			names = append(names, name)
		}
	}

	for _, c := range pred.Concepts {
		add(c.Name)
	}
	for _, r := range pred.Regions {
		for _, c := range r.Concepts {
			add(c.Name)
		}
	}
	if len(names) == 0 && pred.Raw != "" {
		for _, m := range namePattern.FindAllStringSubmatch(pred.Raw, -1) {
			add(m[1])
		}
	}
	return names
}
