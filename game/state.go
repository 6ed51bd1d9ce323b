package game

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrSecondLocal = errors.New("a local avatar already exists")
	ErrDuplicateID = errors.New("avatar id already in use")
)

// State is every avatar known to one running instance.
type State struct {
	Tick    int
	Avatars map[string]Avatar
	LocalID string
}

func NewState() *State {
	return &State{Avatars: make(map[string]Avatar)}
}

// AddAvatar registers av. At most one avatar may be local.
func (s *State) AddAvatar(av Avatar) error {
	st := av.State()
	if _, ok := s.Avatars[st.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, st.ID)
	}
	if st.IsLocal() {
		if s.LocalID != "" {
			return fmt.Errorf("%w: %s", ErrSecondLocal, s.LocalID)
		}
		s.LocalID = st.ID
	}
	s.Avatars[st.ID] = av
	st.owner = s
	return nil
}

// RemoveAvatar drops the avatar and releases its color.
func (s *State) RemoveAvatar(id string) bool {
	av, ok := s.Avatars[id]
	if !ok {
		return false
	}
	st := av.State()
	st.Destroy()
	st.owner = nil
	delete(s.Avatars, id)
	if s.LocalID == id {
		s.LocalID = ""
	}
	return true
}

func (s *State) Get(id string) (*AvatarState, bool) {
	av, ok := s.Avatars[id]
	if !ok {
		return nil, false
	}
	return av.State(), true
}

func (s *State) Local() (Avatar, bool) {
	if s.LocalID == "" {
		return nil, false
	}
	av, ok := s.Avatars[s.LocalID]
	return av, ok
}

// IDs returns the avatar ids in sorted order.
func (s *State) IDs() []string {
	ids := make([]string, 0, len(s.Avatars))
	for id := range s.Avatars {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ColorHolder returns the id of another avatar currently wearing hex, if any.
func (s *State) ColorHolder(hex, except string) (string, bool) {
	for id, av := range s.Avatars {
		if id == except {
			continue
		}
		if st := av.State(); st.HasColor() && st.ColorHex() == hex {
			return id, true
		}
	}
	return "", false
}
