package bridge

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"avatarsync/logging"
	"avatarsync/protocol"
)

const DefaultInboxSize = 256

var ErrClosed = errors.New("bridge closed")

// Emitter is the transport side of the bridge: it sends one named message
// to the host.
type Emitter interface {
	Emit(t string, payload any) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(t string, payload any) error

func (f EmitterFunc) Emit(t string, payload any) error { return f(t, payload) }

// Handler receives decoded inbound messages on the tick goroutine.
type Handler interface {
	Welcome(protocol.Welcome)
	Spawn(protocol.Spawn)
	Despawn(protocol.Despawn)
	Position(protocol.Position)
	Customize(protocol.CustomizePush)
	Action(protocol.ActionPush)
}

type Config struct {
	Out       Emitter
	Codec     protocol.Codec
	Logger    *zap.Logger
	InboxSize int
}

// Bridge turns local avatar events into outbound messages and queues
// inbound frames until the tick drains them. Deliver may be called from any
// goroutine; Drain must only be called from the tick.
type Bridge struct {
	out   Emitter
	codec protocol.Codec
	log   *zap.Logger
	inbox chan []byte
	done  chan struct{}
}

func New(cfg Config) *Bridge {
	size := cfg.InboxSize
	if size <= 0 {
		size = DefaultInboxSize
	}
	codec := cfg.Codec
	if codec == nil {
		codec = protocol.JSON
	}
	return &Bridge{
		out:   cfg.Out,
		codec: codec,
		log:   logging.OrNop(cfg.Logger),
		inbox: make(chan []byte, size),
		done:  make(chan struct{}),
	}
}

func (b *Bridge) emit(t string, payload any) {
	if b.out == nil {
		return
	}
	if err := b.out.Emit(t, payload); err != nil {
		b.log.Warn("emit failed", zap.String("type", t), zap.Error(err))
	}
}

// EmitInput sends this tick's stick input.
func (b *Bridge) EmitInput(x, y float64) {
	b.emit(protocol.MsgInput, protocol.Input{X: x, Y: y})
}

// EmitCustomization announces the local avatar's customization.
func (b *Bridge) EmitCustomization(colorHex string, headVariant int, height float64) {
	b.emit(protocol.MsgSyncCustomize, protocol.Customization{Color: colorHex, Head: headVariant, Height: height})
}

// EmitAction asks the host to perform the local avatar's default action.
func (b *Bridge) EmitAction() {
	b.emit(protocol.MsgAction, protocol.ActionRequest{})
}

// EmitHello opens the session.
func (b *Bridge) EmitHello(name, variant string) {
	b.emit(protocol.MsgHello, protocol.Hello{V: protocol.Version, Name: name, Variant: variant})
}

// Deliver queues one inbound frame. It blocks while the inbox is full.
func (b *Bridge) Deliver(ctx context.Context, frame []byte) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	select {
	case b.inbox <- frame:
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close makes pending and future Deliver calls fail.
func (b *Bridge) Close() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
}

// Drain applies every queued frame to h and returns how many were handled.
// Frames that fail to decode are logged and dropped.
func (b *Bridge) Drain(h Handler) int {
	n := 0
	for {
		select {
		case frame := <-b.inbox:
			if b.dispatch(frame, h) {
				n++
			}
		default:
			return n
		}
	}
}

func (b *Bridge) dispatch(frame []byte, h Handler) bool {
	env, err := b.codec.DecodeEnvelope(frame)
	if err != nil {
		b.log.Debug("dropping undecodable frame", zap.Error(err))
		return false
	}

	switch env.T {
	case protocol.MsgWelcome:
		return decodeAnd(b, env, h.Welcome)
	case protocol.MsgSpawn:
		return decodeAnd(b, env, h.Spawn)
	case protocol.MsgDespawn:
		return decodeAnd(b, env, h.Despawn)
	case protocol.MsgPosition:
		return decodeAnd(b, env, h.Position)
	case protocol.MsgCustomize:
		return decodeAnd(b, env, h.Customize)
	case protocol.MsgAction:
		return decodeAnd(b, env, h.Action)
	default:
		b.log.Debug("ignoring unknown message", zap.String("type", env.T))
		return false
	}
}

func decodeAnd[T any](b *Bridge, env protocol.Envelope, apply func(T)) bool {
	msg, err := protocol.DecodeWith[T](b.codec, env)
	if err != nil {
		b.log.Debug("dropping malformed payload", zap.String("type", env.T), zap.Error(err))
		return false
	}
	apply(msg)
	return true
}
