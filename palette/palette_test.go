package palette

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"sync"
	"testing"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/webp"
)

func testColors(t *testing.T, hexes ...string) []colorful.Color {
	t.Helper()
	out := make([]colorful.Color, 0, len(hexes))
	for _, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			t.Fatalf("bad test color %q: %v", h, err)
		}
		out = append(out, c)
	}
	return out
}

func TestAllocateYieldsDistinctColorsThenExhausts(t *testing.T) {
	colors := testColors(t, "#ff0000", "#00ff00", "#0000ff", "#ffff00")
	p := New(colors, WithRand(rand.New(rand.NewPCG(1, 2))))

	seen := make(map[string]bool)
	for i := 0; i < len(colors); i++ {
		c, err := p.Allocate()
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		k := Key(c)
		if seen[k] {
			t.Fatalf("color %s allocated twice", k)
		}
		seen[k] = true
	}

	_, err := p.Allocate()
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	var ex *ExhaustedError
	if !errors.As(err, &ex) || ex.Size != len(colors) {
		t.Fatalf("expected *ExhaustedError{Size:%d}, got %#v", len(colors), err)
	}
}

func TestDuplicatePaletteEntriesCollapse(t *testing.T) {
	p := New(testColors(t, "#ff0000", "#FF0000", "#00ff00"))
	if p.Size() != 2 {
		t.Fatalf("Size = %d, want 2", p.Size())
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	colors := testColors(t, "#ff0000", "#00ff00")
	p := New(colors)
	if !p.Remove(colors[0]) {
		t.Fatalf("first remove should report true")
	}
	if p.Remove(colors[0]) {
		t.Fatalf("second remove should be a no-op")
	}
	if p.Len() != 1 {
		t.Fatalf("Len = %d, want 1", p.Len())
	}
	stranger := testColors(t, "#123456")[0]
	if p.Remove(stranger) {
		t.Fatalf("removing a foreign color should be a no-op")
	}
}

func TestReleaseReturnsColorOnce(t *testing.T) {
	colors := testColors(t, "#ff0000")
	p := New(colors)
	c, err := p.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if !p.Release(c) {
		t.Fatalf("release should return the color")
	}
	if p.Release(c) {
		t.Fatalf("double release must not duplicate the color")
	}
	if p.Len() != 1 {
		t.Fatalf("Len = %d, want 1", p.Len())
	}
	if p.Release(testColors(t, "#abcdef")[0]) {
		t.Fatalf("foreign colors cannot be released into the pool")
	}
	if _, err := p.Allocate(); err != nil {
		t.Fatalf("allocate after release: %v", err)
	}
}

func TestRemainingKeepsPaletteOrder(t *testing.T) {
	colors := testColors(t, "#010101", "#020202", "#030303")
	p := New(colors)
	p.Remove(colors[1])
	p.Release(colors[1])
	got := p.Remaining()
	for i := range colors {
		if Key(got[i]) != Key(colors[i]) {
			t.Fatalf("Remaining[%d] = %s, want %s", i, Key(got[i]), Key(colors[i]))
		}
	}
}

func TestConcurrentAllocateNeverDuplicates(t *testing.T) {
	p := New(DefaultColors())
	n := p.Size()

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for i := 0; i < n+4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := p.Allocate()
			if err != nil {
				return
			}
			mu.Lock()
			seen[Key(c)]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("allocated %d distinct colors, want %d", len(seen), n)
	}
	for k, count := range seen {
		if count != 1 {
			t.Fatalf("color %s allocated %d times", k, count)
		}
	}
}

func TestDefaultPaletteDecodes(t *testing.T) {
	p, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if p.Size() != 16 {
		t.Fatalf("default palette size = %d, want 16", p.Size())
	}
	again, _ := Default()
	if again != p {
		t.Fatalf("Default must return the same pool")
	}
}

func TestDecodeSkipsTransparentTexels(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.SetNRGBA(0, 1, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(2, 1, color.NRGBA{B: 255, A: 255})
	// top row differs and must be ignored
	img.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	colors, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(colors) != 2 {
		t.Fatalf("got %d colors, want 2", len(colors))
	}
	if Key(colors[0]) != "#ff0000" || Key(colors[1]) != "#0000ff" {
		t.Fatalf("unexpected colors %s %s", Key(colors[0]), Key(colors[1]))
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestWriteWebPRoundTrip(t *testing.T) {
	colors := testColors(t, "#ff0000", "#00ff00", "#0000ff")
	p := New(colors)
	p.Remove(colors[1])

	var buf bytes.Buffer
	if err := WriteWebP(&buf, p); err != nil {
		t.Fatalf("WriteWebP: %v", err)
	}
	img, err := webp.Decode(&buf)
	if err != nil {
		t.Fatalf("webp decode: %v", err)
	}
	if img.Bounds().Dx() != 2*SwatchSize {
		t.Fatalf("strip width = %d, want %d", img.Bounds().Dx(), 2*SwatchSize)
	}
	c, _ := colorful.MakeColor(img.At(SwatchSize+1, 1))
	if Key(c) != "#0000ff" {
		t.Fatalf("second swatch = %s, want #0000ff", Key(c))
	}
}
