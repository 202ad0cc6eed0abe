package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/p-n-ai/buzzle/internal/platform/observe"
)

// ClipKind labels a narration clip.
type ClipKind string

const (
	ClipIntro    ClipKind = "intro"
	ClipQuestion ClipKind = "question"
	ClipFeedback ClipKind = "feedback"
	ClipOutro    ClipKind = "outro"
	ClipContent  ClipKind = "content"
	// ClipCue is the local tone played when feedback narration is unavailable.
	ClipCue ClipKind = "cue"
)

// Clip is one piece of narration. Audio is base64-encoded.
type Clip struct {
	ID      string
	Kind    ClipKind
	Text    string
	Audio   string
	Correct bool
}

// Player is the audio device. Play blocks until the clip has finished, has
// failed, or ctx is done. A cue returns as soon as it has been emitted.
// Stop interrupts whatever is playing.
type Player interface {
	Play(ctx context.Context, clip Clip) error
	Stop()
}

// Narrator plays clips one at a time with a gap between consecutive clips.
type Narrator struct {
	player  Player
	gap     time.Duration
	metrics *observe.Metrics

	seq atomic.Int64

	mu      sync.Mutex
	playing bool
	lastEnd time.Time
}

// NewNarrator creates a narrator on player.
func NewNarrator(player Player, gap time.Duration, metrics *observe.Metrics) *Narrator {
	return &Narrator{player: player, gap: gap, metrics: metrics}
}

// Playing reports whether a clip is playing right now.
func (n *Narrator) Playing() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.playing
}

// Play plays clips in order. Clips without audio are skipped; a clip that
// fails to play is logged and the next one starts. Only a done ctx stops the
// sequence, in which case ctx.Err() is returned.
func (n *Narrator) Play(ctx context.Context, clips ...Clip) error {
	for _, clip := range clips {
		if clip.Audio == "" {
			continue
		}
		if err := n.waitGap(ctx); err != nil {
			return err
		}
		err := n.play(ctx, clip)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		n.metrics.RecordClip(ctx, string(clip.Kind), err)
		if err != nil {
			slog.Warn("narration playback failed, continuing",
				"clip_id", clip.ID,
				"kind", clip.Kind,
				"error", err,
			)
		}
	}
	return nil
}

// Cue emits a cue without waiting for a gap.
func (n *Narrator) Cue(ctx context.Context, correct bool) {
	clip := Clip{ID: n.nextID(ClipCue), Kind: ClipCue, Correct: correct}
	err := n.player.Play(ctx, clip)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("cue playback failed", "error", err)
	}
	n.metrics.RecordClip(ctx, string(ClipCue), err)
}

// Stop interrupts the current clip.
func (n *Narrator) Stop() {
	n.player.Stop()
}

func (n *Narrator) play(ctx context.Context, clip Clip) error {
	if clip.ID == "" {
		clip.ID = n.nextID(clip.Kind)
	}

	n.mu.Lock()
	if n.playing {
		n.player.Stop()
	}
	n.playing = true
	n.mu.Unlock()

	err := n.player.Play(ctx, clip)

	n.mu.Lock()
	n.playing = false
	n.lastEnd = time.Now()
	n.mu.Unlock()
	return err
}

func (n *Narrator) waitGap(ctx context.Context) error {
	n.mu.Lock()
	last := n.lastEnd
	n.mu.Unlock()
	if last.IsZero() || n.gap <= 0 {
		return ctx.Err()
	}
	wait := time.Until(last.Add(n.gap))
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (n *Narrator) nextID(kind ClipKind) string {
	return fmt.Sprintf("%s-%d", kind, n.seq.Add(1))
}
