package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/buzzle/internal/catalog"
	"github.com/p-n-ai/buzzle/internal/experience"
	"github.com/p-n-ai/buzzle/internal/progress"
	"github.com/p-n-ai/buzzle/internal/session"
)

type fakeGenerator struct {
	exp         *experience.Experience
	err         error
	feedbackErr error
	// noFeedbackAudio makes Feedback answer {"audio": null}.
	noFeedbackAudio bool
	// hangFeedback makes Feedback block until its context ends.
	hangFeedback bool
	// gate, when set, holds Generate until it is closed.
	gate chan struct{}

	mu        sync.Mutex
	requests  []experience.GenerateRequest
	feedbacks []experience.FeedbackRequest
}

func (g *fakeGenerator) Generate(ctx context.Context, req experience.GenerateRequest) (*experience.Experience, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.exp, nil
}

func (g *fakeGenerator) Feedback(ctx context.Context, req experience.FeedbackRequest) (experience.FeedbackResponse, error) {
	g.mu.Lock()
	g.feedbacks = append(g.feedbacks, req)
	g.mu.Unlock()

	if g.hangFeedback {
		<-ctx.Done()
		return experience.FeedbackResponse{}, ctx.Err()
	}

	if g.feedbackErr != nil {
		return experience.FeedbackResponse{}, g.feedbackErr
	}
	if g.noFeedbackAudio {
		return experience.FeedbackResponse{}, nil
	}
	audio := "ZmVlZGJhY2s="
	return experience.FeedbackResponse{Audio: &audio}, nil
}

func (g *fakeGenerator) Requests() []experience.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]experience.GenerateRequest{}, g.requests...)
}

func (g *fakeGenerator) Feedbacks() []experience.FeedbackRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]experience.FeedbackRequest{}, g.feedbacks...)
}

type fakeReporter struct {
	mu   sync.Mutex
	reqs []progress.Request
	err  error
}

func (r *fakeReporter) Report(_ context.Context, req progress.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return r.err
}

func (r *fakeReporter) Requests() []progress.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.Request{}, r.reqs...)
}

// gameExperience builds a game whose answers are "1", "2", ... "n".
func gameExperience(n int) *experience.Experience {
	exp := &experience.Experience{
		Title:             "Counting",
		Intro:             "Let's count!",
		IntroAudio:        "aW50cm8=",
		OutroSuccess:      "Wonderful!",
		OutroSuccessAudio: "c3VjY2Vzcw==",
		OutroRetry:        "Let's try again!",
		OutroRetryAudio:   "cmV0cnk=",
	}
	for i := 1; i <= n; i++ {
		exp.Questions = append(exp.Questions, experience.Question{
			Text:   fmt.Sprintf("What comes after %d?", i-1),
			Answer: fmt.Sprintf("{%d, %s}", i, words[i]),
			Audio:  "cXVlc3Rpb24=",
		})
	}
	return exp
}

var words = []string{"zero", "one", "two", "three", "four", "five", "six", "seven"}

func learnExperience() *experience.Experience {
	return &experience.Experience{
		Title:   "Shapes",
		Content: "A triangle has three sides.",
		Audio:   "Y29udGVudA==",
	}
}

type harness struct {
	ctrl     *session.Controller
	gen      *fakeGenerator
	player   *session.MockPlayer
	reporter *fakeReporter
	events   *session.MemoryEventLogger
}

func newHarness(t *testing.T, gen *fakeGenerator, player *session.MockPlayer, opts ...func(*session.Config)) *harness {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("catalog.Load() error = %v", err)
	}
	if player == nil {
		player = &session.MockPlayer{}
	}
	h := &harness{
		gen:      gen,
		player:   player,
		reporter: &fakeReporter{},
		events:   session.NewMemoryEventLogger(),
	}
	cfg := session.Config{
		UserID:           "child-1",
		Generator:        gen,
		Player:           player,
		Catalog:          cat,
		Reporter:         h.reporter,
		Events:           h.events,
		NarrationGap:     time.Millisecond,
		FeedbackFallback: 5 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.ctrl = session.New(cfg)
	t.Cleanup(func() {
		h.ctrl.Reset()
		player.Release()
		h.ctrl.Wait()
	})
	return h
}

// choose selects character, subject and mode.
func (h *harness) choose(t *testing.T, character, subject, mode string) {
	t.Helper()
	if err := h.ctrl.SelectCharacter(character); err != nil {
		t.Fatalf("SelectCharacter(%q) error = %v", character, err)
	}
	if err := h.ctrl.SelectSubject(subject); err != nil {
		t.Fatalf("SelectSubject(%q) error = %v", subject, err)
	}
	if err := h.ctrl.SelectMode(mode); err != nil {
		t.Fatalf("SelectMode(%q) error = %v", mode, err)
	}
}

// answerAll waits for each question and submits the matching transcript.
func (h *harness) answerAll(t *testing.T, transcripts []string) {
	t.Helper()
	for i, text := range transcripts {
		waitFor(t, fmt.Sprintf("evaluating(%d)", i), func() bool {
			p, ok := h.ctrl.State().Phase.(session.Evaluating)
			return ok && p.Index == i
		})
		if err := h.ctrl.SubmitTranscript(text); err != nil {
			t.Fatalf("SubmitTranscript(%q) error = %v", text, err)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func isIdle(s session.State) bool {
	_, ok := s.Phase.(session.Idle)
	return ok
}
