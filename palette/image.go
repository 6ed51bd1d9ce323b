package palette

import (
	"bytes"
	_ "embed"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"os"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

//go:embed assets/palette.png
var defaultPaletteImage []byte

var (
	defaultOnce sync.Once
	defaultPool *Pool
	defaultErr  error
)

// Default returns the process-wide pool built from the embedded palette
// strip. It is decoded on first use and never torn down.
func Default() (*Pool, error) {
	defaultOnce.Do(func() {
		var colors []colorful.Color
		colors, defaultErr = Decode(bytes.NewReader(defaultPaletteImage))
		if defaultErr == nil {
			defaultPool = New(colors)
		}
	})
	return defaultPool, defaultErr
}

// DefaultColors decodes the embedded palette without touching the shared pool.
func DefaultColors() []colorful.Color {
	colors, err := Decode(bytes.NewReader(defaultPaletteImage))
	if err != nil {
		panic(fmt.Sprintf("embedded palette: %v", err))
	}
	return colors
}

// Decode reads a palette image (png, bmp or webp) and returns the colors of
// its bottom pixel row, left to right.
func Decode(r io.Reader) ([]colorful.Color, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode palette image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("palette image (%s) is empty", format)
	}
	y := b.Max.Y - 1
	colors := make([]colorful.Color, 0, b.Dx())
	for x := b.Min.X; x < b.Max.X; x++ {
		c, ok := colorful.MakeColor(img.At(x, y))
		if !ok {
			// fully transparent texels are padding
			continue
		}
		colors = append(colors, c)
	}
	if len(colors) == 0 {
		return nil, fmt.Errorf("palette image (%s) has no opaque texels", format)
	}
	return colors, nil
}

// LoadFile builds a fresh pool from the palette image at path.
func LoadFile(path string, opts ...Option) (*Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open palette: %w", err)
	}
	defer f.Close()
	colors, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(colors, opts...), nil
}
