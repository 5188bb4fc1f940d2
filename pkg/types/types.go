package types

import (
	"image"
	"strings"
)

// Gender is the single audience value applied to every item of one inbound message.
type Gender string

const (
	Men    Gender = "men"
	Women  Gender = "women"
	Unisex Gender = "unisex"
)

// ParseGender maps free-form labels onto a Gender. Unknown labels report false.
func ParseGender(s string) (Gender, bool) {
	switch s {
	case "men", "man", "male", "masculine":
		return Men, true
	case "women", "woman", "female", "feminine":
		return Women, true
	case "unisex":
		return Unisex, true
	}
	return "", false
}

// Box is a bounding box with fractional coordinates in [0,1] relative to the image size.
type Box struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
}

// Concept is a model label with its confidence.
type Concept struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// DetectedRegion is one box returned by a detection model with its ordered concepts.
type DetectedRegion struct {
	Box      Box       `json:"box"`
	Concepts []Concept `json:"concepts"`
}

// Prediction is the backend-neutral model response.
// Regions is filled by detection models, Concepts by whole-image classifiers.
// Raw keeps the textual response of backends that answer in free text.
type Prediction struct {
	Regions  []DetectedRegion `json:"regions"`
	Concepts []Concept        `json:"concepts"`
	Raw      string           `json:"-"`
}

// ImageRef points at one inbound image, either by URL or by raw bytes.
type ImageRef struct {
	URL         string `json:"url,omitempty"`
	Data        []byte `json:"-"`
	ContentType string `json:"content_type,omitempty"`
	Name        string `json:"name,omitempty"`
}

// InboundMessage is what a channel adapter hands to the pipeline.
type InboundMessage struct {
	Sender string     `json:"sender"`
	Images []ImageRef `json:"images"`
	Text   string     `json:"text,omitempty"`
}

// SourceImage is a decoded inbound image plus the URL the models can fetch it from.
type SourceImage struct {
	Index int
	Ref   ImageRef
	Image image.Image
	// PublicURL is empty when no storage is configured; models then receive bytes.
	PublicURL string
}

// Candidate is one thresholded, cropped clothing item.
type Candidate struct {
	SourceIndex int         `json:"source_index"`
	SourceURL   string      `json:"source_url,omitempty"`
	Box         Box         `json:"box"`
	Crop        image.Image `json:"-"`
	ConceptName string      `json:"concept_name"`
	Confidence  float64     `json:"confidence"`
	Tags        string      `json:"tags,omitempty"`
	Style       string      `json:"style,omitempty"`
	CategoryID  string      `json:"category_id,omitempty"`
	TopLinks    []string    `json:"top_links"`
}

// SearchTerm is the concept used for category resolution: the fine-grained tag when
// tagging succeeded, otherwise the detector's concept name.
func (c *Candidate) SearchTerm() string {
	if c.Tags != "" {
		return c.Tags
	}
	return c.ConceptName
}

// SearchResult is one marketplace listing.
type SearchResult struct {
	ItemWebURL  string   `json:"itemWebUrl"`
	CategoryIDs []string `json:"category_ids"`
}

// Query is the marketplace search text: the search term, prefixed by the first form of
// the style attribute when one was recorded ("tartan/plaid" contributes "tartan").
func (c *Candidate) Query() string {
	term := c.SearchTerm()
	if c.Style == "" {
		return term
	}
	style, _, _ := strings.Cut(c.Style, "/")
	return style + " " + term
}
