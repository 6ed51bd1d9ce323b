package game

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	VariantDancer   = "dancer"
	VariantShootout = "shootout"

	TagFireball = "fireball"
)

var ErrUnknownVariant = errors.New("unknown avatar variant")

// Action is the outcome of an avatar's default action.
type Action struct {
	AvatarID string
	Name     string
}

// Collision describes something touching the avatar. Normal points away
// from the other body.
type Collision struct {
	Tag    string
	Other  string
	Normal mgl64.Vec3
}

// Avatar is an AvatarState plus the behavior that differs per game mode.
type Avatar interface {
	State() *AvatarState
	Variant() string
	PerformAction(rng *rand.Rand) Action
	OnCollision(c Collision)
}

func NewAvatar(variant string, st *AvatarState) (Avatar, error) {
	switch variant {
	case "", VariantDancer:
		return &Dancer{st: st}, nil
	case VariantShootout:
		return &Shootout{Dancer: Dancer{st: st}}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
}

// Dancer is the lobby avatar: its action is one of the dance moves and
// collisions do nothing.
type Dancer struct {
	st *AvatarState
}

func (d *Dancer) State() *AvatarState { return d.st }
func (d *Dancer) Variant() string { return VariantDancer }

func (d *Dancer) PerformAction(rng *rand.Rand) Action {
	n := 1
	if rng != nil {
		n += rng.IntN(DanceMoves)
	}
	return Action{AvatarID: d.st.ID, Name: fmt.Sprintf("Dance%d", n)}
}

func (d *Dancer) OnCollision(Collision) {}

// Shootout throws fireballs and gets knocked back by them.
type Shootout struct {
	Dancer
}

func (s *Shootout) Variant() string { return VariantShootout }

func (s *Shootout) PerformAction(*rand.Rand) Action {
	return Action{AvatarID: s.st.ID, Name: "Fireball"}
}

func (s *Shootout) OnCollision(c Collision) {
	if c.Tag != TagFireball {
		return
	}
	push := c.Normal
	if push.LenSqr() > 0 {
		push = push.Normalize()
	}
	s.st.ApplyImpulse(push.Mul(FireballKnockback))
}
