package palette

import (
	"errors"
	"image"
	"image/color"
	"io"

	"github.com/HugoSmits86/nativewebp"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// SwatchSize is the edge length in pixels of one color cell in Strip.
const SwatchSize = 16

// Strip renders colors as a single row of square swatches.
func Strip(colors []colorful.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, SwatchSize*max(len(colors), 1), SwatchSize))
	for i, c := range colors {
		r, g, b := c.Clamped().RGB255()
		px := color.NRGBA{R: r, G: g, B: b, A: 0xff}
		for y := 0; y < SwatchSize; y++ {
			for x := i * SwatchSize; x < (i+1)*SwatchSize; x++ {
				img.SetNRGBA(x, y, px)
			}
		}
	}
	return img
}

// WriteWebP encodes the colors still available in p as a lossless WebP strip.
func WriteWebP(w io.Writer, p *Pool) error {
	if p == nil {
		return errors.New("nil palette pool")
	}
	return nativewebp.Encode(w, Strip(p.Remaining()), nil)
}
