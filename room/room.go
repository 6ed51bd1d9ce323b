package room

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	colorful "github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"

	"avatarsync/game"
	"avatarsync/logging"
	"avatarsync/palette"
	"avatarsync/protocol"
)

const (
	spawnRadius = 3.0
	spawnSlots  = 8
)

var avatarAnchor = mgl64.Vec3{0, 1, 0}

type Config struct {
	SimTickHz   int
	BroadcastHz int
	Variant     string // used when hello names none
	Tuning      game.Tuning
	Palette     []colorful.Color
	Logger      *zap.Logger
	Rand        *rand.Rand
}

// Room is one host: it owns the authoritative avatar state and every
// connected participant. Everything but Inbox, Stop and NumPlayers must
// only be touched by the Run goroutine.
type Room struct {
	Inbox          chan any
	tickHz         int
	broadcastEvery int
	defaultVariant string
	tuning         game.Tuning
	state          *game.State
	pool           *palette.Pool
	clients        map[string]Conn
	latestInputs   map[string]game.Input
	joined         int
	players        atomic.Int32
	rng            *rand.Rand
	log            *zap.Logger
	quit           chan struct{}
	stopOnce       sync.Once

	Code    string            // room code (e.g. "ABC123")
	OnEmpty func(code string) // called when last player leaves
}

func New(cfg Config) *Room {
	if cfg.SimTickHz <= 0 {
		cfg.SimTickHz = protocol.SimTickHz
	}
	if cfg.BroadcastHz <= 0 {
		cfg.BroadcastHz = protocol.BroadcastHz
	}
	broadcastEvery := cfg.SimTickHz / cfg.BroadcastHz
	if broadcastEvery <= 0 {
		broadcastEvery = 1
	}
	if cfg.Tuning == (game.Tuning{}) {
		cfg.Tuning = game.DefaultTuning()
	}
	if cfg.Palette == nil {
		cfg.Palette = palette.DefaultColors()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Room{
		Inbox:          make(chan any, 256),
		tickHz:         cfg.SimTickHz,
		broadcastEvery: broadcastEvery,
		defaultVariant: cfg.Variant,
		tuning:         cfg.Tuning,
		state:          game.NewState(),
		pool:           palette.New(cfg.Palette, palette.WithRand(rng)),
		clients:        make(map[string]Conn),
		latestInputs:   make(map[string]game.Input),
		rng:            rng,
		log:            logging.OrNop(cfg.Logger),
		quit:           make(chan struct{}),
	}
}

func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

// Submit queues cmd for the room. It reports false once the room stopped.
func (r *Room) Submit(cmd any) bool {
	select {
	case <-r.quit:
		return false
	default:
	}
	select {
	case r.Inbox <- cmd:
		return true
	case <-r.quit:
		return false
	}
}

// Done is closed when the room stops.
func (r *Room) Done() <-chan struct{} {
	return r.quit
}

// NumPlayers returns the current number of connected clients.
func (r *Room) NumPlayers() int {
	return int(r.players.Load())
}

// Palette is the room's pool of free colors.
func (r *Room) Palette() *palette.Pool {
	return r.pool
}

func (r *Room) Run() {
	ticker := time.NewTicker(time.Second / time.Duration(r.tickHz))
	defer ticker.Stop()
	dt := 1 / float64(r.tickHz)

	for {
		select {
		case <-r.quit:
			return
		case cmd := <-r.Inbox:
			r.handleCommand(cmd)
		case <-ticker.C:
			game.Step(r.state, r.latestInputs, dt)
			if r.state.Tick%r.broadcastEvery == 0 {
				r.broadcastPositions()
			}
		}
	}
}

func (r *Room) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case Join:
		r.handleJoin(c)
	case Input:
		if _, ok := r.clients[c.PlayerID]; !ok {
			return
		}
		r.latestInputs[c.PlayerID] = c.Input
	case Customize:
		r.handleCustomize(c)
	case Action:
		r.handleAction(c)
	case Leave:
		r.handleLeave(c.PlayerID)
	default:
		r.log.Warn("unknown room command", zap.String("type", fmt.Sprintf("%T", cmd)))
	}
}

func (r *Room) handleJoin(c Join) {
	variant := c.Variant
	if variant == "" {
		variant = r.defaultVariant
	}
	playerID := uuid.NewString()
	slot := r.joined % spawnSlots
	angle := 2 * math.Pi * float64(slot) / spawnSlots
	spawn := mgl64.Vec3{spawnRadius * math.Cos(angle), 0, spawnRadius * math.Sin(angle)}

	name := c.Name
	if name == "" {
		name = fmt.Sprintf("Player %d", r.joined+1)
	}
	st := game.NewAvatarState(game.AvatarConfig{
		ID:      playerID,
		Address: c.Address,
		Name:    name,
		Spawn:   spawn,
		Anchor:  avatarAnchor,
		Pool:    r.pool,
		Tuning:  r.tuning,
	})
	av, err := game.NewAvatar(variant, st)
	if err == nil {
		err = r.state.AddAvatar(av)
	}
	if err != nil {
		r.log.Warn("join rejected", zap.String("name", name), zap.String("variant", variant), zap.Error(err))
		c.Reply <- JoinResult{Err: err}
		return
	}

	r.joined++
	r.clients[playerID] = c.Conn
	r.latestInputs[playerID] = game.Input{}
	r.players.Store(int32(len(r.clients)))

	r.sendTo(c.Conn, protocol.MsgWelcome, protocol.Welcome{
		PlayerID: playerID,
		TickHz:   r.tickHz,
		Spawn:    protocol.Vec3(spawn),
	})
	for _, id := range r.state.IDs() {
		if id != playerID {
			r.sendTo(c.Conn, protocol.MsgSpawn, r.spawnFor(id))
		}
	}
	r.broadcast(protocol.MsgSpawn, r.spawnFor(playerID), playerID)

	r.log.Info("player joined",
		zap.String("room", r.Code),
		zap.String("player", playerID),
		zap.String("name", name),
		zap.String("variant", av.Variant()),
		zap.String("addr", c.Address))
	c.Reply <- JoinResult{PlayerID: playerID}
}

// handleCustomize applies a participant's customization and relays the
// result to everyone, sender included. A color another avatar already wears
// or one outside the room palette is replaced by a free one.
func (r *Room) handleCustomize(c Customize) {
	av, ok := r.state.Avatars[c.PlayerID]
	if !ok {
		return
	}
	st := av.State()
	custom := c.Custom
	if col, err := game.ParseColor(custom.Color); err == nil {
		holder, taken := r.state.ColorHolder(game.HexColor(col), c.PlayerID)
		if taken || !r.pool.Contains(col) {
			custom.Color = r.reassignColor(st)
			r.log.Info("color reassigned",
				zap.String("player", c.PlayerID),
				zap.String("wanted", c.Custom.Color),
				zap.String("holder", holder),
				zap.String("got", custom.Color))
		}
	}
	if err := st.ApplyCustomizations(custom.Color, custom.Head, custom.Height); err != nil {
		r.log.Debug("partial customization", zap.String("player", c.PlayerID), zap.Error(err))
	}
	r.broadcast(protocol.MsgCustomize, customizeFor(st), "")
}

// reassignColor keeps the avatar's own color when it has one nobody else
// wears, otherwise draws a free one. Empty when the palette is exhausted.
func (r *Room) reassignColor(st *game.AvatarState) string {
	if st.HasColor() {
		if _, taken := r.state.ColorHolder(st.ColorHex(), st.ID); !taken {
			return st.ColorHex()
		}
	}
	col, err := r.pool.Allocate()
	if err != nil {
		r.log.Warn("no color left to hand out", zap.String("room", r.Code), zap.Error(err))
		return st.ColorHex()
	}
	return game.HexColor(col)
}

func (r *Room) handleAction(c Action) {
	av, ok := r.state.Avatars[c.PlayerID]
	if !ok {
		return
	}
	act := av.PerformAction(r.rng)
	r.broadcast(protocol.MsgAction, protocol.ActionPush{ID: act.AvatarID, Name: act.Name}, "")

	if av.Variant() == game.VariantShootout {
		r.fireball(av.State())
	}
}

// fireball hits the nearest other avatar in range and knocks it away from
// the shooter.
func (r *Room) fireball(from *game.AvatarState) {
	var target game.Avatar
	best := game.FireballRange
	for _, id := range r.state.IDs() {
		if id == from.ID {
			continue
		}
		av := r.state.Avatars[id]
		if d := av.State().Position.Sub(from.Position).Len(); d <= best {
			best = d
			target = av
		}
	}
	if target == nil {
		return
	}
	target.OnCollision(game.Collision{
		Tag:    game.TagFireball,
		Other:  from.ID,
		Normal: target.State().Position.Sub(from.Position),
	})
}

func (r *Room) handleLeave(playerID string) {
	c, ok := r.clients[playerID]
	if !ok {
		return
	}
	delete(r.clients, playerID)
	delete(r.latestInputs, playerID)
	r.state.RemoveAvatar(playerID)
	r.players.Store(int32(len(r.clients)))
	_ = c.Close()

	r.log.Info("player left", zap.String("room", r.Code), zap.String("player", playerID))
	r.broadcast(protocol.MsgDespawn, protocol.Despawn{ID: playerID}, "")

	if len(r.clients) == 0 && r.OnEmpty != nil && r.Code != "" {
		r.OnEmpty(r.Code)
	}
}

func (r *Room) broadcastPositions() {
	msg := protocol.Position{
		Tick:    r.state.Tick,
		Avatars: make([]protocol.AvatarPosition, 0, len(r.state.Avatars)),
	}
	for _, id := range r.state.IDs() {
		st := r.state.Avatars[id].State()
		msg.Avatars = append(msg.Avatars, protocol.AvatarPosition{
			ID:       id,
			Position: protocol.Vec3(st.Position),
			Movement: protocol.Vec3(st.Movement),
		})
	}
	r.broadcast(protocol.MsgPosition, msg, "")
}

// broadcast sends one message to every client but except, encoding it once
// per codec in use. Clients whose send fails are dropped.
func (r *Room) broadcast(t string, payload any, except string) {
	frames := make(map[string][]byte, 2)
	var failed []string
	for id, c := range r.clients {
		if id == except {
			continue
		}
		codec := codecOf(c)
		b, ok := frames[codec.Name()]
		if !ok {
			var err error
			if b, err = codec.Encode(t, payload); err != nil {
				r.log.Error("encode failed", zap.String("type", t), zap.String("codec", codec.Name()), zap.Error(err))
				return
			}
			frames[codec.Name()] = b
		}
		if err := c.Send(b); err != nil {
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		r.log.Debug("dropping unreachable player", zap.String("player", id))
		r.handleLeave(id)
	}
}

func (r *Room) sendTo(c Conn, t string, payload any) {
	b, err := codecOf(c).Encode(t, payload)
	if err != nil {
		r.log.Error("encode failed", zap.String("type", t), zap.Error(err))
		return
	}
	_ = c.Send(b)
}

func (r *Room) spawnFor(id string) protocol.Spawn {
	av := r.state.Avatars[id]
	st := av.State()
	sp := protocol.Spawn{
		ID:       id,
		Name:     st.DisplayName,
		Variant:  av.Variant(),
		Position: protocol.Vec3(st.Position),
	}
	if st.HasColor() {
		sp.Custom = &protocol.Customization{Color: st.ColorHex(), Head: st.HeadVariant, Height: st.HeightOffset}
	}
	return sp
}

func customizeFor(st *game.AvatarState) protocol.CustomizePush {
	return protocol.CustomizePush{
		ID: st.ID,
		Customization: protocol.Customization{
			Color:  st.ColorHex(),
			Head:   st.HeadVariant,
			Height: st.HeightOffset,
		},
	}
}

func codecOf(c Conn) protocol.Codec {
	if codec := c.Codec(); codec != nil {
		return codec
	}
	return protocol.JSON
}
