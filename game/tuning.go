package game

import "math"

const (
	DefaultSpeed           = 5.0
	FloorY                 = -10.0 // below this the avatar fell out of the world
	CorrectionGain         = 0.25  // share of host error closed per second
	DefaultTurnRate        = 2 * math.Pi
	MinHeightOffset        = -0.2
	MaxHeightOffset        = 0.75
	DefaultBlendShapeCount = 4
	DefaultVertexCount     = 256
	DanceMoves             = 2
	FireballKnockback      = 6.0
	FireballRange          = 8.0
	VelocityDamping        = 3.0 // share of knockback velocity lost per second
)

// Tuning holds the per-process movement and appearance knobs.
type Tuning struct {
	Speed           float64
	FloorY          float64
	CorrectionGain  float64
	TurnRate        float64 // radians per second
	BlendShapeCount int
	VertexCount     int
}

func DefaultTuning() Tuning {
	return Tuning{
		Speed:           DefaultSpeed,
		FloorY:          FloorY,
		CorrectionGain:  CorrectionGain,
		TurnRate:        DefaultTurnRate,
		BlendShapeCount: DefaultBlendShapeCount,
		VertexCount:     DefaultVertexCount,
	}
}
