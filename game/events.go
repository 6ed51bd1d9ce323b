package game

// EventSink receives the outbound events produced by the local avatar.
type EventSink interface {
	EmitInput(x, y float64)
	EmitCustomization(colorHex string, headVariant int, height float64)
}
