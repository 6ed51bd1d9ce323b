package room

import (
	"avatarsync/game"
	"avatarsync/protocol"
)

// Conn is one participant's connection as the room sees it. Frames are
// encoded with the connection's own codec.
type Conn interface {
	Send([]byte) error
	Close() error
	Codec() protocol.Codec
}

// Join: issued once after hello parsed
type Join struct {
	Conn    Conn
	Name    string
	Variant string
	Address string
	Reply   chan<- JoinResult
}

type JoinResult struct {
	PlayerID string
	Err      error
}

// Input: latest input for a player
type Input struct {
	PlayerID string
	Input    game.Input
}

// Customize: a participant announced its customization
type Customize struct {
	PlayerID string
	Custom   protocol.Customization
}

// Action: a participant asked for its default action
type Action struct {
	PlayerID string
}

// Leave: issued on disconnect
type Leave struct {
	PlayerID string
}
