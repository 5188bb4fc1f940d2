package gender

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wha7/wha7/pkg/types"
)

type scriptedModel struct {
	byURL   map[string]*types.Prediction
	byBytes []*types.Prediction
	errs    []error
	calls   int
}

func (m *scriptedModel) PredictByURL(_ context.Context, url string) (*types.Prediction, error) {
	m.calls++
	if p, ok := m.byURL[url]; ok {
		return p, nil
	}
	return nil, errors.New("unreachable url")
}

func (m *scriptedModel) PredictByBytes(_ context.Context, _ []byte) (*types.Prediction, error) {
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.byBytes) {
		return m.byBytes[i], nil
	}
	return &types.Prediction{}, nil
}

func img(index int, url string) types.SourceImage {
	return types.SourceImage{Index: index, PublicURL: url, Image: image.NewRGBA(image.Rect(0, 0, 100, 100))}
}

func face(conf float64) types.DetectedRegion {
	return types.DetectedRegion{
		Box:      types.Box{Top: 0.1, Left: 0.1, Bottom: 0.4, Right: 0.4},
		Concepts: []types.Concept{{Name: "face", Confidence: conf}},
	}
}

func genderPred(masc, fem float64) *types.Prediction {
	return &types.Prediction{Concepts: []types.Concept{
		{Name: "feminine", Confidence: fem},
		{Name: "Masculine", Confidence: masc},
	}}
}

func TestClassifyMasculine(t *testing.T) {
	faces := &scriptedModel{byURL: map[string]*types.Prediction{
		"u1": {Regions: []types.DetectedRegion{face(0.99)}},
	}}
	genders := &scriptedModel{byBytes: []*types.Prediction{genderPred(0.7, 0.3)}}

	c := NewClassifier(faces, genders, nil, 0.8, types.Women, nil)
	assert.Equal(t, types.Men, c.Classify(context.Background(), []types.SourceImage{img(0, "u1")}))
}

func TestClassifyFeminine(t *testing.T) {
	faces := &scriptedModel{byURL: map[string]*types.Prediction{
		"u1": {Regions: []types.DetectedRegion{face(0.99)}},
	}}
	genders := &scriptedModel{byBytes: []*types.Prediction{genderPred(0.2, 0.8)}}

	c := NewClassifier(faces, genders, nil, 0.8, types.Men, nil)
	assert.Equal(t, types.Women, c.Classify(context.Background(), []types.SourceImage{img(0, "u1")}))
}

func TestClassifyShortCircuits(t *testing.T) {
	faces := &scriptedModel{byURL: map[string]*types.Prediction{
		"u1": {Regions: []types.DetectedRegion{face(0.5)}},
		"u2": {Regions: []types.DetectedRegion{face(0.9)}},
		"u3": {Regions: []types.DetectedRegion{face(0.9)}},
	}}
	genders := &scriptedModel{byBytes: []*types.Prediction{genderPred(0.9, 0.1), genderPred(0.1, 0.9)}}

	c := NewClassifier(faces, genders, nil, 0.8, types.Women, nil)
	got := c.Classify(context.Background(), []types.SourceImage{img(0, "u1"), img(1, "u2"), img(2, "u3")})

	assert.Equal(t, types.Men, got)
	assert.Equal(t, 2, faces.calls)
	assert.Equal(t, 1, genders.calls)
}

func TestClassifyFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		faces   *scriptedModel
		genders *scriptedModel
	}{
		{
			name:    "no faces",
			faces:   &scriptedModel{byURL: map[string]*types.Prediction{"u1": {}}},
			genders: &scriptedModel{},
		},
		{
			name:    "face detection error",
			faces:   &scriptedModel{},
			genders: &scriptedModel{},
		},
		{
			name:    "gender model error",
			faces:   &scriptedModel{byURL: map[string]*types.Prediction{"u1": {Regions: []types.DetectedRegion{face(0.9)}}}},
			genders: &scriptedModel{errs: []error{errors.New("boom")}},
		},
		{
			name:    "gender model without concepts",
			faces:   &scriptedModel{byURL: map[string]*types.Prediction{"u1": {Regions: []types.DetectedRegion{face(0.9)}}}},
			genders: &scriptedModel{byBytes: []*types.Prediction{{}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(tt.faces, tt.genders, nil, 0.8, types.Men, nil)
			assert.Equal(t, types.Men, c.Classify(context.Background(), []types.SourceImage{img(0, "u1")}))
		})
	}
}

func TestClassifyFallsThroughToNextFace(t *testing.T) {
	faces := &scriptedModel{byURL: map[string]*types.Prediction{
		"u1": {Regions: []types.DetectedRegion{face(0.9), face(0.95)}},
	}}
	genders := &scriptedModel{
		errs:    []error{errors.New("timeout")},
		byBytes: []*types.Prediction{nil, genderPred(0.9, 0.1)},
	}

	c := NewClassifier(faces, genders, nil, 0.8, types.Women, nil)
	assert.Equal(t, types.Men, c.Classify(context.Background(), []types.SourceImage{img(0, "u1")}))
}

func TestNewClassifierDefault(t *testing.T) {
	c := NewClassifier(&scriptedModel{}, &scriptedModel{}, nil, 0.8, types.Unisex, nil)
	assert.Equal(t, DefaultGender, c.Fallback())
}

func TestZeroThresholdUsesDetectorDefault(t *testing.T) {
	faces := &scriptedModel{byURL: map[string]*types.Prediction{
		"u1": {Regions: []types.DetectedRegion{face(0.5)}},
	}}
	genders := &scriptedModel{byBytes: []*types.Prediction{genderPred(0.9, 0.1)}}

	c := NewClassifier(faces, genders, nil, 0, types.Women, nil)
	assert.Equal(t, 0.8, c.threshold)
	assert.Equal(t, types.Women, c.Classify(context.Background(), []types.SourceImage{img(0, "u1")}))
	assert.Zero(t, genders.calls)
}

func TestClassifyUsesBytesWithoutURL(t *testing.T) {
	faces := &scriptedModel{byBytes: []*types.Prediction{{Regions: []types.DetectedRegion{face(0.9)}}}}
	genders := &scriptedModel{byBytes: []*types.Prediction{genderPred(0.9, 0.1)}}

	c := NewClassifier(faces, genders, nil, 0.8, types.Women, nil)
	assert.Equal(t, types.Men, c.Classify(context.Background(), []types.SourceImage{img(0, "")}))
}
