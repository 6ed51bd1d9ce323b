package game

// Step is the host tick: the latest input of every avatar becomes its
// movement, positions integrate and become the authoritative host position.
func Step(s *State, inputs map[string]Input, dt float64) {
	s.Tick++

	for id, av := range s.Avatars {
		st := av.State()
		inp, ok := inputs[id]
		if !ok {
			inp = Input{}
		}
		st.SetMovement(clampAxis(inp.X), clampAxis(inp.Y), true)
		st.UpdateRemote(dt)
		st.HostPosition = st.Position
	}
}

// Advance is the client tick: the local avatar predicts from in and is
// pulled toward the host, everyone else extrapolates.
func Advance(s *State, in Input, dt float64, sink EventSink) {
	s.Tick++

	for id, av := range s.Avatars {
		st := av.State()
		if id == s.LocalID {
			st.UpdateLocal(dt, Input{X: clampAxis(in.X), Y: clampAxis(in.Y)}, sink)
			continue
		}
		st.UpdateRemote(dt)
	}
}

func clampAxis(v float64) float64 {
	if v != v {
		return 0
	}
	return min(max(v, -1), 1)
}
