package imaging

import (
	"fmt"
	"image"
	"os"

	"github.com/chai2010/webp"
	"golang.org/x/image/draw"
)

// DefaultThumbnailSize is the longest edge of generated previews.
const DefaultThumbnailSize = 256

// WriteThumbnail writes a scaled webp preview of img. maxDim bounds the
// longest edge; images already small enough are encoded unscaled.
func WriteThumbnail(path string, img image.Image, maxDim int) error {
	if maxDim <= 0 {
		maxDim = DefaultThumbnailSize
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxDim || h > maxDim {
		if w >= h {
			h = h * maxDim / w
			w = maxDim
		} else {
			w = w * maxDim / h
			h = maxDim
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		scaled := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Src, nil)
		img = scaled
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create thumbnail: %w", err)
	}
	if err := webp.Encode(f, img, &webp.Options{Quality: 90}); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode webp %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close thumbnail %s: %w", path, err)
	}
	return nil
}
