package bridge

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"avatarsync/game"
	"avatarsync/logging"
	"avatarsync/protocol"
)

// Factory builds an avatar for a participant announced by the host.
type Factory func(id, name, variant string, local bool, pos mgl64.Vec3) (game.Avatar, error)

// StateHandler applies inbound messages to a game.State. Every field is
// checked on its own; bad data is skipped, the rest of the message applies.
type StateHandler struct {
	State     *game.State
	NewAvatar Factory
	OnWelcome func(protocol.Welcome)
	OnAction  func(protocol.ActionPush)
	Logger    *zap.Logger
}

func (h *StateHandler) log() *zap.Logger { return logging.OrNop(h.Logger) }

func (h *StateHandler) Welcome(w protocol.Welcome) {
	if w.PlayerID == "" {
		h.log().Warn("welcome without player id")
		return
	}
	if h.OnWelcome != nil {
		h.OnWelcome(w)
	}
}

func (h *StateHandler) Spawn(sp protocol.Spawn) {
	if sp.ID == "" || sp.ID == h.State.LocalID {
		return
	}
	if _, exists := h.State.Avatars[sp.ID]; exists {
		if sp.Custom != nil {
			h.Customize(protocol.CustomizePush{ID: sp.ID, Customization: *sp.Custom})
		}
		return
	}
	if h.NewAvatar == nil {
		return
	}
	pos, ok := toVec(sp.Position)
	if !ok {
		pos = mgl64.Vec3{}
	}
	av, err := h.NewAvatar(sp.ID, sp.Name, sp.Variant, false, pos)
	if err != nil {
		h.log().Warn("cannot spawn avatar", zap.String("avatar", sp.ID), zap.Error(err))
		return
	}
	if err := h.State.AddAvatar(av); err != nil {
		h.log().Warn("cannot add avatar", zap.String("avatar", sp.ID), zap.Error(err))
		return
	}
	if sp.Custom != nil {
		h.Customize(protocol.CustomizePush{ID: sp.ID, Customization: *sp.Custom})
	}
}

func (h *StateHandler) Despawn(d protocol.Despawn) {
	if d.ID == h.State.LocalID {
		return
	}
	h.State.RemoveAvatar(d.ID)
}

func (h *StateHandler) Position(p protocol.Position) {
	for _, ap := range p.Avatars {
		st, ok := h.State.Get(ap.ID)
		if !ok {
			continue
		}
		pos, okPos := toVec(ap.Position)
		mov, okMov := toVec(ap.Movement)
		if !okPos {
			h.log().Debug("dropping non-finite position", zap.String("avatar", ap.ID))
			continue
		}
		if !okMov {
			mov = st.Movement
		}
		st.ApplyHostUpdate(pos, mov)
	}
}

func (h *StateHandler) Customize(c protocol.CustomizePush) {
	st, ok := h.State.Get(c.ID)
	if !ok {
		return
	}
	err := st.ApplyCustomizations(c.Color, c.Head, c.Height)
	var malformed *game.MalformedColorError
	if errors.As(err, &malformed) {
		h.log().Debug("kept previous color", zap.String("avatar", c.ID), zap.String("color", c.Color))
	}
}

func (h *StateHandler) Action(a protocol.ActionPush) {
	if _, ok := h.State.Avatars[a.ID]; !ok {
		return
	}
	if h.OnAction != nil {
		h.OnAction(a)
	}
}

func toVec(v protocol.Vec3) (mgl64.Vec3, bool) {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return mgl64.Vec3{}, false
		}
	}
	return mgl64.Vec3(v), true
}
