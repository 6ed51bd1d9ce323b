package network

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	colorful "github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"avatarsync/game"
	"avatarsync/logging"
	"avatarsync/protocol"
	"avatarsync/room"
)

const (
	DefaultRoom = "LOBBY"
	maxFrame    = 1 << 20 // 1MB
	helloWait   = 10 * time.Second
)

var errRoomClosed = errors.New("room closed")

type ServerConfig struct {
	Rooms        *room.Manager
	Colors       []colorful.Color // palette definition, served by /debug/palette.webp without ?room
	Logger       *zap.Logger
	WriteTimeout time.Duration
	PongTimeout  time.Duration
	InputHz      int // per-connection input budget
	InputBurst   int
}

// Server accepts websocket participants and routes their messages into
// rooms.
type Server struct {
	cfg      ServerConfig
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if cfg.InputHz <= 0 {
		cfg.InputHz = protocol.ClientInputHz
	}
	if cfg.InputBurst <= 0 {
		cfg.InputBurst = max(cfg.InputHz/2, 1)
	}
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// For dev, allow all origins. Lock this down in prod.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logging.OrNop(cfg.Logger),
	}
}

// ServeWS runs one participant: hello, join, then the read loop until the
// socket drops.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("room")
	if code == "" {
		code = DefaultRoom
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", zap.String("addr", r.RemoteAddr), zap.Error(err))
		return
	}
	defer ws.Close()

	// Basic timeouts + pong handling (keeps connections healthy)
	ws.SetReadLimit(maxFrame)
	_ = ws.SetReadDeadline(time.Now().Add(helloWait))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		return nil
	})

	frameType, frame, err := ws.ReadMessage()
	if err != nil {
		s.log.Debug("no hello", zap.String("addr", r.RemoteAddr), zap.Error(err))
		return
	}
	codec := codecFor(frameType)
	hello, err := readHello(codec, frame)
	if err != nil {
		s.log.Info("bad hello", zap.String("addr", r.RemoteAddr), zap.Error(err))
		closeWith(ws, websocket.ClosePolicyViolation, err.Error(), s.cfg.WriteTimeout)
		return
	}
	_ = ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))

	conn := newWSConn(ws, codec, s.cfg.WriteTimeout)
	rm, playerID, err := s.join(code, room.Join{
		Conn:    conn,
		Name:    hello.Name,
		Variant: hello.Variant,
		Address: r.RemoteAddr,
	})
	if err != nil {
		s.log.Info("join failed", zap.String("room", code), zap.String("addr", r.RemoteAddr), zap.Error(err))
		closeWith(ws, websocket.ClosePolicyViolation, err.Error(), s.cfg.WriteTimeout)
		return
	}
	log := s.log.With(zap.String("room", code), zap.String("player", playerID), zap.String("codec", codec.Name()))
	log.Debug("connected")

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(conn, done)

	s.readLoop(ws, conn, rm, playerID, log)

	rm.Submit(room.Leave{PlayerID: playerID})
	_ = conn.Close()
	log.Debug("disconnected")
}

func readHello(codec protocol.Codec, frame []byte) (protocol.Hello, error) {
	env, err := codec.DecodeEnvelope(frame)
	if err != nil {
		return protocol.Hello{}, err
	}
	if env.T != protocol.MsgHello {
		return protocol.Hello{}, fmt.Errorf("expected %s, got %q", protocol.MsgHello, env.T)
	}
	hello, err := protocol.DecodeWith[protocol.Hello](codec, env)
	if err != nil {
		return protocol.Hello{}, err
	}
	if hello.V != protocol.Version {
		return protocol.Hello{}, fmt.Errorf("unsupported protocol version %d", hello.V)
	}
	return hello, nil
}

// join hands the participant to the room. A room that stopped between
// lookup and join (its last player just left) is replaced once.
func (s *Server) join(code string, j room.Join) (*room.Room, string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		rm := s.cfg.Rooms.GetOrCreateRoom(code)
		reply := make(chan room.JoinResult, 1)
		j.Reply = reply
		if !rm.Submit(j) {
			continue
		}
		select {
		case res := <-reply:
			if res.Err != nil {
				return nil, "", res.Err
			}
			return rm, res.PlayerID, nil
		case <-rm.Done():
		}
	}
	return nil, "", errRoomClosed
}

func (s *Server) readLoop(ws *websocket.Conn, conn *wsConn, rm *room.Room, playerID string, log *zap.Logger) {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.InputHz), s.cfg.InputBurst)
	dropped := 0

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("read failed", zap.Error(err))
			}
			return
		}
		env, err := conn.codec.DecodeEnvelope(frame)
		if err != nil {
			log.Debug("dropping undecodable frame", zap.Error(err))
			continue
		}

		var cmd any
		switch env.T {
		case protocol.MsgInput:
			in, err := protocol.DecodeWith[protocol.Input](conn.codec, env)
			if err != nil {
				log.Debug("bad input", zap.Error(err))
				continue
			}
			// a stop is never dropped or the avatar would keep walking
			if (in.X != 0 || in.Y != 0) && !limiter.Allow() {
				dropped++
				if dropped%100 == 1 {
					log.Warn("input rate exceeded", zap.Int("dropped", dropped))
				}
				continue
			}
			cmd = room.Input{PlayerID: playerID, Input: game.Input{X: in.X, Y: in.Y}}
		case protocol.MsgSyncCustomize:
			c, err := protocol.DecodeWith[protocol.Customization](conn.codec, env)
			if err != nil {
				log.Debug("bad customization", zap.Error(err))
				continue
			}
			cmd = room.Customize{PlayerID: playerID, Custom: c}
		case protocol.MsgAction:
			cmd = room.Action{PlayerID: playerID}
		default:
			log.Debug("ignoring message", zap.String("type", env.T))
			continue
		}
		if !rm.Submit(cmd) {
			return
		}
	}
}

func (s *Server) pingLoop(conn *wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PongTimeout * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func closeWith(ws *websocket.Conn, code int, reason string, timeout time.Duration) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout))
}
