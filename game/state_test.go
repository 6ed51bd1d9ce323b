package game

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestAddAvatarAllowsOneLocal(t *testing.T) {
	s := NewState()
	addTestAvatar(t, s, "me", true)

	second, _ := NewAvatar(VariantDancer, newTestAvatar(t, "me2", true, nil))
	if err := s.AddAvatar(second); !errors.Is(err, ErrSecondLocal) {
		t.Fatalf("expected ErrSecondLocal, got %v", err)
	}
	dup, _ := NewAvatar(VariantDancer, newTestAvatar(t, "me", false, nil))
	if err := s.AddAvatar(dup); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	local, ok := s.Local()
	if !ok || local.State().ID != "me" {
		t.Fatalf("Local() = %v %v", local, ok)
	}
}

func TestRemoveAvatarReleasesColorAndLocalSlot(t *testing.T) {
	pool := testPool(t, "#112233")
	s := NewState()
	st := newTestAvatar(t, "me", true, pool)
	av, _ := NewAvatar(VariantDancer, st)
	if err := s.AddAvatar(av); err != nil {
		t.Fatalf("AddAvatar: %v", err)
	}
	if err := st.InitialCustomize(nil, nil); err != nil {
		t.Fatalf("InitialCustomize: %v", err)
	}

	if !s.RemoveAvatar("me") {
		t.Fatalf("RemoveAvatar reported missing avatar")
	}
	if pool.Len() != 1 {
		t.Fatalf("color not released")
	}
	if _, ok := s.Local(); ok {
		t.Fatalf("local slot should be free")
	}
	if s.RemoveAvatar("me") {
		t.Fatalf("second remove should report false")
	}
}

func TestColorHolder(t *testing.T) {
	s := NewState()
	a := addTestAvatar(t, s, "a", false)
	addTestAvatar(t, s, "b", false)
	a.ChangeColor(mustHex(t, "#112233"))

	if id, ok := s.ColorHolder("#112233", "b"); !ok || id != "a" {
		t.Fatalf("ColorHolder = %q %v", id, ok)
	}
	if _, ok := s.ColorHolder("#112233", "a"); ok {
		t.Fatalf("the excepted avatar must be skipped")
	}
	if got := s.IDs(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("IDs = %v", got)
	}
}

func TestVariants(t *testing.T) {
	if _, err := NewAvatar("ghost", newTestAvatar(t, "p", false, nil)); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}

	dancer, _ := NewAvatar("", newTestAvatar(t, "d", false, nil))
	if dancer.Variant() != VariantDancer {
		t.Fatalf("empty variant should default to dancer")
	}
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 20; i++ {
		act := dancer.PerformAction(rng)
		if act.Name != "Dance1" && act.Name != "Dance2" {
			t.Fatalf("unexpected dance %q", act.Name)
		}
		if act.AvatarID != "d" {
			t.Fatalf("action attributed to %q", act.AvatarID)
		}
	}
	dancer.OnCollision(Collision{Tag: TagFireball, Normal: mgl64.Vec3{1, 0, 0}})
	if dancer.State().Velocity != (mgl64.Vec3{}) {
		t.Fatalf("dancers ignore collisions")
	}

	shooter, _ := NewAvatar(VariantShootout, newTestAvatar(t, "s", false, nil))
	if act := shooter.PerformAction(rng); act.Name != "Fireball" {
		t.Fatalf("shootout action = %q", act.Name)
	}
	shooter.OnCollision(Collision{Tag: "wall", Normal: mgl64.Vec3{1, 0, 0}})
	if shooter.State().Velocity != (mgl64.Vec3{}) {
		t.Fatalf("only fireballs knock back")
	}
	shooter.OnCollision(Collision{Tag: TagFireball, Normal: mgl64.Vec3{0, 0, 2}})
	if shooter.State().Velocity != (mgl64.Vec3{0, 0, FireballKnockback}) {
		t.Fatalf("knockback velocity = %v", shooter.State().Velocity)
	}
}

func TestSharedColorStaysTakenWhileWorn(t *testing.T) {
	pool := testPool(t, "#FF0000", "#00FF00")
	red, green := mustHex(t, "#FF0000"), mustHex(t, "#00FF00")
	s := NewState()
	add := func(id string, local bool) *AvatarState {
		st := newTestAvatar(t, id, local, pool)
		av, _ := NewAvatar(VariantDancer, st)
		if err := s.AddAvatar(av); err != nil {
			t.Fatalf("AddAvatar: %v", err)
		}
		return st
	}
	me := add("me", true)
	peer := add("peer", false)
	me.ChangeColor(red)
	peer.ChangeColor(red)

	// the host moves me off the peer's color
	me.ChangeColor(green)
	if pool.IsFree(red) {
		t.Fatalf("red is still worn by the peer and must not be free")
	}

	s.RemoveAvatar("peer")
	if !pool.IsFree(red) {
		t.Fatalf("red should be free once its last wearer left")
	}
	if pool.IsFree(green) {
		t.Fatalf("green is worn by me")
	}
}
