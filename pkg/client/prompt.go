package client

// Prompts for vision-LLM backends. Every prompt asks for the same JSON shape so a
// single parser serves all of them.
const regionSchema = `Return JSON only:
{
  "regions": [
    {"box": {"top": 0.0, "left": 0.0, "bottom": 0.0, "right": 0.0},
     "concepts": [{"name": "string", "confidence": 0.0}]}
  ],
  "concepts": [{"name": "string", "confidence": 0.0}]
}
HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels), top < bottom and left < right.
- Names are lowercase English nouns without punctuation.
- Order concepts by confidence, highest first.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// PromptFor returns the default prompt for a task.
func PromptFor(task Task) string {
	switch task {
	case TaskApparelDetection:
		return `You are an apparel detector. Find every garment and accessory worn or shown in the image
(e.g. jacket, dress, shoes, bag, hat, sunglasses). Return one region per item with its
candidate garment names in "concepts". Leave the top-level "concepts" empty.
` + regionSchema
	case TaskApparelTagging:
		return `You are an apparel classifier. The image shows a single garment or accessory.
Return the most specific garment names (e.g. "denim jacket", "maxi dress", "sneakers") and
any visible style attributes (e.g. "floral", "tartan/plaid", "v-neck") in the top-level
"concepts". Leave "regions" empty.
` + regionSchema
	case TaskFaceDetection:
		return `You are a face detector. Return one region per human face with a single concept
named "face". Leave the top-level "concepts" empty.
` + regionSchema
	case TaskGender:
		return `The image shows a single human face. Classify the presented gender and return exactly
two top-level concepts named "masculine" and "feminine" with confidences that sum to 1.
Leave "regions" empty.
` + regionSchema
	}
	return regionSchema
}
