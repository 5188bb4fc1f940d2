package processing

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"

	"github.com/wha7/wha7/pkg/types"
)

var (
	passColor = color.NRGBA{0, 255, 0, 255}   // at least one concept above threshold
	failColor = color.NRGBA{255, 204, 0, 255} // all concepts at or below threshold
)

// RegionOverlay draws every detected region onto a copy of img.
func RegionOverlay(img image.Image, regions []types.DetectedRegion, threshold float64) image.Image {
	out := imaging.Clone(img)
	w, h := out.Bounds().Dx(), out.Bounds().Dy()
	stroke := int(math.Max(2, 0.004*float64(min(w, h))))

	for _, r := range regions {
		c := failColor
		for _, concept := range r.Concepts {
			if concept.Confidence > threshold {
				c = passColor
				break
			}
		}
		drawBox(out, PixelRect(out.Bounds(), r.Box), c, stroke)
	}
	return out
}

func drawBox(img *image.NRGBA, rect image.Rectangle, c color.NRGBA, stroke int) {
	if rect.Empty() {
		return
	}
	u := image.NewUniform(c)
	for s := 0; s < stroke; s++ {
		edges := []image.Rectangle{
			image.Rect(rect.Min.X, rect.Min.Y+s, rect.Max.X, rect.Min.Y+s+1),
			image.Rect(rect.Min.X, rect.Max.Y-1-s, rect.Max.X, rect.Max.Y-s),
			image.Rect(rect.Min.X+s, rect.Min.Y, rect.Min.X+s+1, rect.Max.Y),
			image.Rect(rect.Max.X-1-s, rect.Min.Y, rect.Max.X-s, rect.Max.Y),
		}
		for _, e := range edges {
			draw.Draw(img, e.Intersect(img.Bounds()), u, image.Point{}, draw.Src)
		}
	}
}
