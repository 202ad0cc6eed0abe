package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/p-n-ai/buzzle/internal/session"
)

var (
	errPlaybackFailed = errors.New("browser reported playback failure")
	errStopped        = errors.New("playback stopped")
	errDisconnected   = errors.New("browser disconnected")
)

// player plays clips in the browser. Play sends a play message and waits for
// the browser to report the clip ended or failed.
type player struct {
	send func(ctx context.Context, msg ServerMessage) error

	mu      sync.Mutex
	pending map[string]chan error
	closed  bool
}

var _ session.Player = (*player)(nil)

func newPlayer(send func(ctx context.Context, msg ServerMessage) error) *player {
	return &player{send: send, pending: map[string]chan error{}}
}

func (p *player) Play(ctx context.Context, clip session.Clip) error {
	if clip.Kind == session.ClipCue {
		correct := clip.Correct
		return p.send(ctx, ServerMessage{Type: MsgCue, ClipID: clip.ID, Correct: &correct})
	}

	done := make(chan error, 1)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errDisconnected
	}
	p.pending[clip.ID] = done
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, clip.ID)
		p.mu.Unlock()
	}()

	err := p.send(ctx, ServerMessage{
		Type:   MsgPlay,
		ClipID: clip.ID,
		Kind:   string(clip.Kind),
		Text:   clip.Text,
		Audio:  clip.Audio,
	})
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Stop tells the browser to stop audio and releases every waiting Play.
func (p *player) Stop() {
	p.finishAll(errStopped)
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_ = p.send(ctx, ServerMessage{Type: MsgStop})
}

// finished completes the Play waiting on clipID. Unknown ids are ignored.
func (p *player) finished(clipID string, err error) {
	p.mu.Lock()
	done, ok := p.pending[clipID]
	p.mu.Unlock()
	if !ok {
		return
	}
	select {
	case done <- err:
	default:
	}
}

// close releases every waiting Play and rejects new ones.
func (p *player) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.finishAll(errDisconnected)
}

func (p *player) finishAll(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, done := range p.pending {
		select {
		case done <- err:
		default:
		}
	}
}
