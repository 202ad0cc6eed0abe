package session

import (
	"context"
	"sync"
)

// MockPlayer records clips for testing. With Hold set, Play blocks until
// Stop, Release or ctx ends. Cues never block.
type MockPlayer struct {
	Hold bool
	Fail map[ClipKind]error

	mu      sync.Mutex
	clips   []Clip
	stops   int
	release chan struct{}
}

func (p *MockPlayer) Play(ctx context.Context, clip Clip) error {
	p.mu.Lock()
	p.clips = append(p.clips, clip)
	err := p.Fail[clip.Kind]
	if !p.Hold || clip.Kind == ClipCue {
		p.mu.Unlock()
		return err
	}
	if p.release == nil {
		p.release = make(chan struct{})
	}
	release := p.release
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-release:
		return err
	}
}

func (p *MockPlayer) Stop() {
	p.mu.Lock()
	p.stops++
	p.mu.Unlock()
	p.Release()
}

// Release lets every held clip finish.
func (p *MockPlayer) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.release != nil {
		close(p.release)
		p.release = nil
	}
}

// Clips returns every clip passed to Play.
func (p *MockPlayer) Clips() []Clip {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Clip{}, p.clips...)
}

// Kinds returns the kinds of every clip passed to Play.
func (p *MockPlayer) Kinds() []ClipKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ClipKind, len(p.clips))
	for i, c := range p.clips {
		out[i] = c.Kind
	}
	return out
}

// Stops returns how many times Stop was called.
func (p *MockPlayer) Stops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}
