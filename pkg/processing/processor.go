package processing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/wha7/wha7/pkg/client"
	"github.com/wha7/wha7/pkg/types"
)

var (
	// ErrInvalidBox is returned for boxes with bottom<=top or right<=left.
	ErrInvalidBox = errors.New("invalid crop box")
	// ErrEmptyCrop is returned when a box maps to zero pixels.
	ErrEmptyCrop = errors.New("empty crop rectangle")
)

// Processor handles image loading, cropping and encoding.
type Processor struct {
	httpClient *http.Client
	// MaxModelDim bounds the long side of images sent to models as bytes. 0 keeps the original.
	MaxModelDim int
	// MinImageSize rejects images whose width or height is smaller. 0 disables the check.
	MinImageSize int
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		MaxModelDim: 1200,
	}
}

// SetHTTPClient replaces the client used to download image URLs.
func (p *Processor) SetHTTPClient(c *http.Client) {
	if c != nil {
		p.httpClient = c
	}
}

// Load decodes an inbound image, downloading it first when only a URL is given.
// The returned bytes are the original encoded image.
func (p *Processor) Load(ctx context.Context, ref types.ImageRef) (image.Image, []byte, error) {
	data := ref.Data
	if len(data) == 0 {
		if ref.URL == "" {
			return nil, nil, fmt.Errorf("image reference has neither data nor URL")
		}
		var err error
		data, _, err = client.FetchImage(ctx, p.httpClient, ref.URL)
		if err != nil {
			return nil, nil, err
		}
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, nil, err
	}
	if err := p.ValidateImage(img); err != nil {
		return nil, nil, err
	}
	return img, data, nil
}

// ValidateImage checks if an image meets minimum requirements
func (p *Processor) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < p.MinImageSize || bounds.Dy() < p.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), p.MinImageSize)
	}
	return nil
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeImage(data)
}

// DecodeImage decodes PNG, JPEG, GIF or WebP bytes.
func DecodeImage(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// Crop cuts a fractional box out of img into a newly allocated image.
// Coordinates are clamped to [0,1]; inverted or zero-area boxes are rejected.
func Crop(img image.Image, box types.Box) (image.Image, error) {
	box = types.Box{
		Top:    clamp(box.Top, 0, 1),
		Left:   clamp(box.Left, 0, 1),
		Bottom: clamp(box.Bottom, 0, 1),
		Right:  clamp(box.Right, 0, 1),
	}
	if box.Bottom <= box.Top || box.Right <= box.Left {
		return nil, fmt.Errorf("%w: top=%.3f left=%.3f bottom=%.3f right=%.3f",
			ErrInvalidBox, box.Top, box.Left, box.Bottom, box.Right)
	}

	rect := PixelRect(img.Bounds(), box)
	if rect.Empty() {
		return nil, ErrEmptyCrop
	}
	return imaging.Crop(img, rect), nil
}

// PixelRect converts a fractional box into absolute pixel coordinates of bounds.
func PixelRect(bounds image.Rectangle, box types.Box) image.Rectangle {
	fw, fh := float64(bounds.Dx()), float64(bounds.Dy())
	x0 := bounds.Min.X + int(math.Round(box.Left*fw))
	y0 := bounds.Min.Y + int(math.Round(box.Top*fh))
	x1 := bounds.Min.X + int(math.Round(box.Right*fw))
	y1 := bounds.Min.Y + int(math.Round(box.Bottom*fh))
	return image.Rect(x0, y0, x1, y1).Intersect(bounds)
}

// EncodePNG serializes an image losslessly.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return buf.Bytes(), nil
}

// PrepareForModel downscales img to MaxModelDim and encodes it as JPEG.
// Fractional boxes returned by models stay valid for the original image.
func (p *Processor) PrepareForModel(img image.Image, quality int) ([]byte, error) {
	if p.MaxModelDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > p.MaxModelDim || h > p.MaxModelDim {
			if w >= h {
				img = imaging.Resize(img, p.MaxModelDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, p.MaxModelDim, imaging.Lanczos)
			}
		}
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
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
