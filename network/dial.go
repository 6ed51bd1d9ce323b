package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"avatarsync/protocol"
)

// Client is the participant side of a websocket. It implements
// bridge.Emitter; inbound frames are handed to ReadLoop's deliver.
type Client struct {
	ws           *websocket.Conn
	codec        protocol.Codec
	frameType    int
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
}

// Dial connects to a host's /ws endpoint. A nil codec means JSON.
func Dial(ctx context.Context, url string, codec protocol.Codec, writeTimeout time.Duration) (*Client, error) {
	if codec == nil {
		codec = protocol.JSON
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	ws.SetReadLimit(maxFrame)
	return &Client{
		ws:           ws,
		codec:        codec,
		frameType:    frameTypeFor(codec),
		writeTimeout: writeTimeout,
	}, nil
}

func (c *Client) Codec() protocol.Codec { return c.codec }

// Emit encodes and sends one message.
func (c *Client) Emit(t string, payload any) error {
	b, err := c.codec.Encode(t, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(c.frameType, b)
}

// ReadLoop passes every inbound frame to deliver until the socket fails,
// deliver fails or ctx is done. The socket is closed on return.
func (c *Client) ReadLoop(ctx context.Context, deliver func(context.Context, []byte) error) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-stop:
		}
	}()
	defer c.Close()

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		if err := deliver(ctx, frame); err != nil {
			return err
		}
	}
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
		err = c.ws.Close()
	})
	return err
}
