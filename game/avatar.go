package game

import (
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	colorful "github.com/lucasb-eyer/go-colorful"

	"avatarsync/palette"
)

// Input is one tick of 2-axis stick input, each axis in -1..1.
type Input struct {
	X float64
	Y float64
}

func (in Input) IsZero() bool {
	return in.X == 0 && in.Y == 0
}

// Appearance is the render-side data customization writes into.
type Appearance struct {
	VertexColors []colorful.Color
	BlendWeights []float64
	AnchorBase   mgl64.Vec3 // spine anchor before any height offset
	Anchor       mgl64.Vec3
}

// AvatarConfig is everything needed to construct an AvatarState.
type AvatarConfig struct {
	ID      string
	Address string
	Name    string
	Local   bool
	Spawn   mgl64.Vec3
	Anchor  mgl64.Vec3
	Pool    *palette.Pool
	Tuning  Tuning
}

// AvatarState is the per-participant record shared by the movement and
// customization logic.
type AvatarState struct {
	ID          string
	Address     string
	DisplayName string
	NameFront   string
	NameBack    string

	Color        colorful.Color
	hasColor     bool
	HeadVariant  int
	HeightOffset float64

	isLocal bool
	CanMove bool

	Position          mgl64.Vec3
	Orientation       mgl64.Quat
	OrientationTarget mgl64.Quat
	HostPosition      mgl64.Vec3
	Movement          mgl64.Vec3
	Velocity          mgl64.Vec3
	AnimSpeed         float64

	Appearance Appearance

	tuning Tuning
	pool   *palette.Pool
	owner  *State // set by State.AddAvatar
}

func NewAvatarState(cfg AvatarConfig) *AvatarState {
	t := cfg.Tuning
	if t == (Tuning{}) {
		t = DefaultTuning()
	}
	a := &AvatarState{
		ID:                cfg.ID,
		Address:           cfg.Address,
		HeadVariant:       -1,
		isLocal:           cfg.Local,
		CanMove:           true,
		Position:          cfg.Spawn,
		HostPosition:      cfg.Spawn,
		Orientation:       mgl64.QuatIdent(),
		OrientationTarget: mgl64.QuatIdent(),
		Appearance: Appearance{
			VertexColors: make([]colorful.Color, max(t.VertexCount, 0)),
			BlendWeights: make([]float64, max(t.BlendShapeCount, 0)),
			AnchorBase:   cfg.Anchor,
			Anchor:       cfg.Anchor,
		},
		tuning: t,
		pool:   cfg.Pool,
	}
	a.SetDisplayName(cfg.Name)
	return a
}

func (a *AvatarState) IsLocal() bool { return a.isLocal }
func (a *AvatarState) HasColor() bool { return a.hasColor }
func (a *AvatarState) Tuning() Tuning { return a.tuning }
func (a *AvatarState) Pool() *palette.Pool { return a.pool }

// SetDisplayName updates the name and both the front and back labels.
func (a *AvatarState) SetDisplayName(name string) {
	a.DisplayName = name
	a.NameFront = name
	a.NameBack = name
}

// ColorHex is the "#RRGGBB" form used on the wire. Empty when unset.
func (a *AvatarState) ColorHex() string {
	if !a.hasColor {
		return ""
	}
	return HexColor(a.Color)
}

func HexColor(c colorful.Color) string {
	return "#" + strings.ToUpper(palette.Key(c)[1:])
}

// Summary is the newline separated debug dump of an avatar.
func (a *AvatarState) Summary() string {
	color := "#"
	if a.hasColor {
		color = HexColor(a.Color)
	}
	return strings.Join([]string{
		a.ID,
		a.Address,
		a.DisplayName,
		color,
		strconv.Itoa(a.HeadVariant),
		strconv.FormatFloat(a.HeightOffset, 'f', -1, 64),
	}, "\n")
}
