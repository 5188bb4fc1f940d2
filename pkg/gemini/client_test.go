package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
)

func TestFirstText(t *testing.T) {
	assert.Equal(t, "", firstText(nil))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("  "), genai.Text(`{"concepts":[]}`)}}},
		},
	}
	assert.Equal(t, `{"concepts":[]}`, firstText(resp))
}
