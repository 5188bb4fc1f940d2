package client

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/wha7/wha7/pkg/types"
)

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParsePrediction parses the JSON answer of a vision LLM into a Prediction.
// Non-JSON answers are kept in Raw with no regions or concepts.
func ParsePrediction(raw string) (*types.Prediction, error) {
	cleaned := SanitizeModelJSON(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return &types.Prediction{Raw: raw}, nil
	}

	var out types.Prediction
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	out.Raw = raw

	for i := range out.Regions {
		out.Regions[i].Box = clampBox(out.Regions[i].Box)
		out.Regions[i].Concepts = normalizeConcepts(out.Regions[i].Concepts)
	}
	out.Concepts = normalizeConcepts(out.Concepts)
	return &out, nil
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from a model answer.
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func normalizeConcepts(in []types.Concept) []types.Concept {
	out := make([]types.Concept, 0, len(in))
	for _, c := range in {
		c.Name = strings.ToLower(strings.TrimSpace(c.Name))
		if c.Name == "" {
			continue
		}
		c.Confidence = clamp(c.Confidence, 0, 1)
		out = append(out, c)
	}
	return out
}

func clampBox(b types.Box) types.Box {
	return types.Box{
		Top:    clamp(b.Top, 0, 1),
		Left:   clamp(b.Left, 0, 1),
		Bottom: clamp(b.Bottom, 0, 1),
		Right:  clamp(b.Right, 0, 1),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
