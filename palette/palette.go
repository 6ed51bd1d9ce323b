package palette

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ErrExhausted is matched by every *ExhaustedError via errors.Is.
var ErrExhausted = errors.New("palette exhausted")

// ExhaustedError is returned by Allocate once every palette color is in use.
type ExhaustedError struct {
	Size int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("palette exhausted: all %d colors allocated", e.Size)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// Key normalizes a color to its lowercase #rrggbb form. Palette colors are
// compared by key so values that went through hex round trips still match.
func Key(c colorful.Color) string {
	return strings.ToLower(c.Clamped().Hex())
}

// Pool hands out unique colors from a fixed, ordered palette. A Pool is safe
// for concurrent use.
type Pool struct {
	mu        sync.Mutex
	colors    []colorful.Color
	members   map[string]struct{}
	remaining []colorful.Color
	rng       *rand.Rand
}

// New builds a pool over colors. Duplicate entries collapse to one.
func New(colors []colorful.Color, opts ...Option) *Pool {
	p := &Pool{
		members: make(map[string]struct{}, len(colors)),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, c := range colors {
		k := Key(c)
		if _, dup := p.members[k]; dup {
			continue
		}
		p.members[k] = struct{}{}
		p.colors = append(p.colors, c)
	}
	p.remaining = append([]colorful.Color(nil), p.colors...)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Option configures a Pool.
type Option func(*Pool)

// WithRand replaces the pool's random source, mostly for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(p *Pool) {
		if r != nil {
			p.rng = r
		}
	}
}

// Allocate removes and returns one remaining color chosen at random.
func (p *Pool) Allocate() (colorful.Color, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.remaining) == 0 {
		return colorful.Color{}, &ExhaustedError{Size: len(p.colors)}
	}
	i := p.rng.IntN(len(p.remaining))
	c := p.remaining[i]
	p.remaining = append(p.remaining[:i], p.remaining[i+1:]...)
	return c, nil
}

// Remove takes c out of the remaining set. It reports whether c was free.
func (p *Pool) Remove(c colorful.Color) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(Key(c))
}

func (p *Pool) removeLocked(k string) bool {
	for i, r := range p.remaining {
		if Key(r) == k {
			p.remaining = append(p.remaining[:i], p.remaining[i+1:]...)
			return true
		}
	}
	return false
}

// Release puts a palette color back into the remaining set. Colors that are
// not part of the palette, or are already free, are ignored.
func (p *Pool) Release(c colorful.Color) bool {
	k := Key(c)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.members[k]; !ok {
		return false
	}
	for _, r := range p.remaining {
		if Key(r) == k {
			return false
		}
	}
	for _, pc := range p.colors {
		if Key(pc) == k {
			p.remaining = append(p.remaining, pc)
			break
		}
	}
	return true
}

// Contains reports whether c belongs to the palette, allocated or not.
func (p *Pool) Contains(c colorful.Color) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.members[Key(c)]
	return ok
}

// IsFree reports whether c is still available for allocation.
func (p *Pool) IsFree(c colorful.Color) bool {
	k := Key(c)
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.remaining {
		if Key(r) == k {
			return true
		}
	}
	return false
}

// Remaining returns a copy of the unallocated colors in palette order.
func (p *Pool) Remaining() []colorful.Color {
	p.mu.Lock()
	defer p.mu.Unlock()
	free := make(map[string]struct{}, len(p.remaining))
	for _, r := range p.remaining {
		free[Key(r)] = struct{}{}
	}
	out := make([]colorful.Color, 0, len(p.remaining))
	for _, c := range p.colors {
		if _, ok := free[Key(c)]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Len is the number of colors still available.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.remaining)
}

// Size is the total number of palette colors.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.colors)
}
