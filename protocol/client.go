package protocol

// Payloads sent by clients to the host.

type Hello struct {
	V       int    `json:"v" msgpack:"v"`                                 // version
	Name    string `json:"name,omitempty" msgpack:"name,omitempty"`       // optional display name
	Variant string `json:"variant,omitempty" msgpack:"variant,omitempty"` // avatar variant, "" for dancer
}

type Input struct {
	X float64 `json:"x" msgpack:"x"` // -1..1 stick X
	Y float64 `json:"y" msgpack:"y"` // -1..1 stick Y
}

type Customization struct {
	Color  string  `json:"color" msgpack:"color"` // "#RRGGBB"
	Head   int     `json:"head" msgpack:"head"`   // -1 base head
	Height float64 `json:"height" msgpack:"height"`
}

type ActionRequest struct{}
