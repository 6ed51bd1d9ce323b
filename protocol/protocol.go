package protocol

const (
	MsgHello         = "hello"
	MsgInput         = "input"
	MsgSyncCustomize = "syncCustomizationsFromClient"
	MsgAction        = "action"
	MsgWelcome       = "welcome"
	MsgPosition      = "position"
	MsgCustomize     = "customize"
	MsgSpawn         = "spawn"
	MsgDespawn       = "despawn"
)

const (
	SimTickHz     = 40
	ClientInputHz = 40
	BroadcastHz   = 20
)

const Version = 1

// Envelope is a decoded message: its type and the still-encoded payload.
type Envelope struct {
	T string
	P []byte
}
