package network

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"avatarsync/protocol"
)

// wsConn is the room's view of one websocket. Writes are serialized since
// the room and the ping loop write from different goroutines.
type wsConn struct {
	ws           *websocket.Conn
	codec        protocol.Codec
	frameType    int
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
}

// frameTypeFor picks the websocket frame type a codec travels in.
func frameTypeFor(c protocol.Codec) int {
	if c == protocol.Msgpack {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// codecFor picks the codec for an inbound frame type.
func codecFor(frameType int) protocol.Codec {
	if frameType == websocket.BinaryMessage {
		return protocol.Msgpack
	}
	return protocol.JSON
}

func newWSConn(ws *websocket.Conn, codec protocol.Codec, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		ws:           ws,
		codec:        codec,
		frameType:    frameTypeFor(codec),
		writeTimeout: writeTimeout,
	}
}

func (c *wsConn) Codec() protocol.Codec { return c.codec }

func (c *wsConn) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(c.frameType, b)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

// Close sends a normal closure and drops the socket. Safe to call twice.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
		err = c.ws.Close()
	})
	return err
}
