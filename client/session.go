package client

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"avatarsync/bridge"
	"avatarsync/game"
	"avatarsync/logging"
	"avatarsync/palette"
	"avatarsync/protocol"
)

// InputSource is the local input device, sampled once per tick.
type InputSource interface {
	Axis() game.Input
}

// InputFunc adapts a function to InputSource.
type InputFunc func() game.Input

func (f InputFunc) Axis() game.Input { return f() }

type Config struct {
	Name     string
	Variant  string
	TickHz   int
	Pool     *palette.Pool
	Tuning   game.Tuning
	Out      bridge.Emitter
	Codec    protocol.Codec
	Rand     *rand.Rand
	Logger   *zap.Logger
	OnAction func(protocol.ActionPush)
}

// Session is one running client: the avatars it knows about, the bridge to
// the host and the frame loop that ties them together. All state is owned
// by the goroutine calling Tick or Run.
type Session struct {
	cfg     Config
	state   *game.State
	bridge  *bridge.Bridge
	handler *bridge.StateHandler
	rng     *rand.Rand
	log     *zap.Logger

	// set by welcome, consumed once the whole inbound batch is applied
	pendingCustomize bool
}

func New(cfg Config) *Session {
	if cfg.TickHz <= 0 {
		cfg.TickHz = protocol.ClientInputHz
	}
	if cfg.Tuning == (game.Tuning{}) {
		cfg.Tuning = game.DefaultTuning()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := &Session{
		cfg:   cfg,
		state: game.NewState(),
		rng:   rng,
		log:   logging.OrNop(cfg.Logger),
	}
	s.bridge = bridge.New(bridge.Config{Out: cfg.Out, Codec: cfg.Codec, Logger: cfg.Logger})
	s.handler = &bridge.StateHandler{
		State:     s.state,
		NewAvatar: s.newAvatar,
		OnWelcome: s.welcome,
		OnAction:  cfg.OnAction,
		Logger:    cfg.Logger,
	}
	return s
}

func (s *Session) Bridge() *bridge.Bridge { return s.bridge }
func (s *Session) State() *game.State { return s.state }

// Start announces this client to the host.
func (s *Session) Start() {
	s.bridge.EmitHello(s.cfg.Name, s.cfg.Variant)
}

func (s *Session) newAvatar(id, name, variant string, local bool, pos mgl64.Vec3) (game.Avatar, error) {
	st := game.NewAvatarState(game.AvatarConfig{
		ID:     id,
		Name:   name,
		Local:  local,
		Spawn:  pos,
		Anchor: mgl64.Vec3{0, 1, 0},
		Pool:   s.cfg.Pool,
		Tuning: s.cfg.Tuning,
	})
	return game.NewAvatar(variant, st)
}

func (s *Session) welcome(w protocol.Welcome) {
	if _, ok := s.state.Local(); ok {
		s.log.Warn("duplicate welcome ignored", zap.String("player", w.PlayerID))
		return
	}
	av, err := s.newAvatar(w.PlayerID, s.cfg.Name, s.cfg.Variant, true, mgl64.Vec3(w.Spawn))
	if err != nil {
		s.log.Error("cannot create local avatar", zap.Error(err))
		return
	}
	if err := s.state.AddAvatar(av); err != nil {
		s.log.Error("cannot add local avatar", zap.Error(err))
		return
	}
	// the peers' spawns follow the welcome, so their colors are not known yet
	s.pendingCustomize = true
}

func (s *Session) customizeLocal() {
	s.pendingCustomize = false
	av, ok := s.state.Local()
	if !ok {
		return
	}
	st := av.State()
	if err := st.InitialCustomize(s.rng, s.bridge); err != nil {
		s.log.Error("initial customization failed", zap.String("player", st.ID), zap.Error(err))
		return
	}
	s.log.Info("joined", zap.String("player", st.ID), zap.String("color", st.ColorHex()))
}

// Tick applies everything the host sent since the last tick, then advances
// every avatar by dt seconds.
func (s *Session) Tick(dt float64, in game.Input) {
	s.bridge.Drain(s.handler)
	if s.pendingCustomize {
		s.customizeLocal()
	}
	game.Advance(s.state, in, dt, s.bridge)
}

// Action performs the local avatar's default action and tells the host.
func (s *Session) Action() (game.Action, bool) {
	av, ok := s.state.Local()
	if !ok {
		return game.Action{}, false
	}
	act := av.PerformAction(s.rng)
	s.bridge.EmitAction()
	return act, true
}

// Run ticks at the configured rate until ctx is done.
func (s *Session) Run(ctx context.Context, src InputSource) error {
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.TickHz))
	defer ticker.Stop()
	defer s.bridge.Close()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			var in game.Input
			if src != nil {
				in = src.Axis()
			}
			s.Tick(dt, in)
		}
	}
}
