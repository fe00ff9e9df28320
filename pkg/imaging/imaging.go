// Package imaging holds the image post-processing steps of the import
// pipeline: alpha channel splitting, PNG io, decoding of uncompressed
// DDS output from bcdecode, a native decode fallback for when texconv
// is unavailable, and webp preview thumbnails.
package imaging

import (
	"fmt"
	"image"
	"image/png"
	"os"

	// Registers the dds format so image.Decode can read the
	// uncompressed DDS files bcdecode produces.
	_ "github.com/lukegb/dds"
)

// DecodeFile decodes a PNG or uncompressed DDS image file.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode png %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png %s: %w", path, err)
	}
	return nil
}

// SplitAlpha separates img into an opaque color image and a grayscale
// alpha image. ok is false when every pixel is fully opaque; callers
// should then keep the original image untouched.
func SplitAlpha(img image.Image) (clr *image.NRGBA, alpha *image.Gray, ok bool) {
	bounds := img.Bounds()
	clr = image.NewNRGBA(bounds)
	alpha = image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			a8 := uint8(a >> 8)
			if a8 != 0xFF {
				ok = true
			}

			co := clr.PixOffset(x, y)
			if a == 0 {
				clr.Pix[co+0] = 0
				clr.Pix[co+1] = 0
				clr.Pix[co+2] = 0
			} else {
				// Un-premultiply; RGBA() returns alpha-premultiplied.
				clr.Pix[co+0] = uint8((r * 0xFFFF / a) >> 8)
				clr.Pix[co+1] = uint8((g * 0xFFFF / a) >> 8)
				clr.Pix[co+2] = uint8((b * 0xFFFF / a) >> 8)
			}
			clr.Pix[co+3] = 0xFF

			alpha.Pix[alpha.PixOffset(x, y)] = a8
		}
	}

	return clr, alpha, ok
}

// SplitAlphaFile extracts the alpha channel of the PNG at colorPath.
// When a non-trivial alpha channel exists, the alpha is written as a
// grayscale PNG to alphaPath and colorPath is rewritten opaque,
// returning true. A fully opaque image leaves both files alone.
func SplitAlphaFile(colorPath, alphaPath string) (bool, error) {
	img, err := DecodeFile(colorPath)
	if err != nil {
		return false, err
	}

	clr, alpha, ok := SplitAlpha(img)
	if !ok {
		return false, nil
	}

	if err := WritePNG(alphaPath, alpha); err != nil {
		return false, fmt.Errorf("write alpha: %w", err)
	}
	if err := WritePNG(colorPath, clr); err != nil {
		return false, fmt.Errorf("rewrite color: %w", err)
	}
	return true, nil
}
