package protocol

type Vec3 [3]float64

type Welcome struct {
	PlayerID string `json:"playerId" msgpack:"playerId"`
	TickHz   int    `json:"tickHz" msgpack:"tickHz"`
	Spawn    Vec3   `json:"spawn" msgpack:"spawn"`
}

// Position is the periodic authoritative push for every avatar in a room.
type Position struct {
	Tick    int              `json:"tick" msgpack:"tick"`
	Avatars []AvatarPosition `json:"avatars" msgpack:"avatars"`
}

type AvatarPosition struct {
	ID       string `json:"id" msgpack:"id"`
	Position Vec3   `json:"position" msgpack:"position"`
	Movement Vec3   `json:"movement" msgpack:"movement"`
}

// CustomizePush applies a participant's customization on every peer.
type CustomizePush struct {
	ID string `json:"id" msgpack:"id"`
	Customization
}

type Spawn struct {
	ID       string         `json:"id" msgpack:"id"`
	Name     string         `json:"name" msgpack:"name"`
	Variant  string         `json:"variant,omitempty" msgpack:"variant,omitempty"`
	Position Vec3           `json:"position" msgpack:"position"`
	Custom   *Customization `json:"custom,omitempty" msgpack:"custom,omitempty"`
}

type Despawn struct {
	ID string `json:"id" msgpack:"id"`
}

type ActionPush struct {
	ID   string `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`
}
