package game

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"

	"avatarsync/palette"
)

// MalformedColorError reports a color string that could not be parsed. The
// rest of the customization it arrived with is still applied.
type MalformedColorError struct {
	Value string
	Err   error
}

func (e *MalformedColorError) Error() string {
	return fmt.Sprintf("malformed color %q: %v", e.Value, e.Err)
}

func (e *MalformedColorError) Unwrap() error { return e.Err }

// ParseColor accepts "#RGB" and "#RRGGBB", case-insensitive. A missing
// leading '#' is tolerated.
func ParseColor(s string) (colorful.Color, error) {
	s = strings.TrimSpace(s)
	if s != "" && s[0] != '#' {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, err
	}
	return c, nil
}

// InitialCustomize picks a color (if none is set yet), a head variant and a
// height, then announces the choice when this is the local avatar.
func (a *AvatarState) InitialCustomize(rng *rand.Rand, sink EventSink) error {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if !a.hasColor {
		if a.pool == nil {
			return fmt.Errorf("avatar %s: no palette to allocate from", a.ID)
		}
		c, err := a.pool.Allocate()
		if err != nil {
			return fmt.Errorf("avatar %s: %w", a.ID, err)
		}
		a.ChangeColor(c)
	}

	// -1 keeps the base head
	a.SetHeadVariant(rng.IntN(a.tuning.BlendShapeCount+1) - 1)
	a.SetHeight(MinHeightOffset + rng.Float64()*(MaxHeightOffset-MinHeightOffset))

	if a.isLocal && sink != nil {
		sink.EmitCustomization(a.ColorHex(), a.HeadVariant, a.HeightOffset)
	}
	return nil
}

// ApplyCustomizations applies a customization chosen elsewhere. A bad color
// is skipped and reported, head and height are applied regardless.
func (a *AvatarState) ApplyCustomizations(colorHex string, headVariant int, height float64) error {
	var colorErr error
	if c, err := ParseColor(colorHex); err == nil {
		a.ChangeColor(c)
	} else {
		colorErr = &MalformedColorError{Value: colorHex, Err: err}
	}
	a.SetHeadVariant(headVariant)
	a.SetHeight(height)
	return colorErr
}

// ChangeColor tints every vertex, takes the color out of the local pool and
// hands the previous one back.
func (a *AvatarState) ChangeColor(c colorful.Color) {
	for i := range a.Appearance.VertexColors {
		a.Appearance.VertexColors[i] = c
	}
	if a.pool != nil {
		if a.hasColor && palette.Key(a.Color) != palette.Key(c) {
			a.releaseColor()
		}
		a.pool.Remove(c)
	}
	a.Color = c
	a.hasColor = true
}

// SetHeadVariant selects a blend shape, -1 being the base head. Out of
// range indices fall back to the base head.
func (a *AvatarState) SetHeadVariant(v int) {
	if v < -1 || v >= len(a.Appearance.BlendWeights) {
		v = -1
	}
	for i := range a.Appearance.BlendWeights {
		a.Appearance.BlendWeights[i] = 0
	}
	a.HeadVariant = v
	if v > -1 {
		a.Appearance.BlendWeights[v] = 100
	}
}

// SetHeight clamps h and places the spine anchor at base + h. NaN is ignored.
func (a *AvatarState) SetHeight(h float64) {
	if math.IsNaN(h) {
		return
	}
	h = min(max(h, MinHeightOffset), MaxHeightOffset)
	a.HeightOffset = h
	a.Appearance.Anchor = a.Appearance.AnchorBase
	a.Appearance.Anchor[1] += h
}

// Destroy gives the avatar's color back to the pool.
func (a *AvatarState) Destroy() {
	if a.hasColor {
		a.releaseColor()
	}
	a.hasColor = false
}

// releaseColor returns the current color to the pool unless another avatar
// in the same State still wears it.
func (a *AvatarState) releaseColor() {
	if a.pool == nil {
		return
	}
	if a.owner != nil {
		if _, worn := a.owner.ColorHolder(a.ColorHex(), a.ID); worn {
			return
		}
	}
	a.pool.Release(a.Color)
}
