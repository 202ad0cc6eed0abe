package session_test

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/buzzle/internal/experience"
	"github.com/p-n-ai/buzzle/internal/session"
)

func TestSelection_AnyOrder(t *testing.T) {
	tests := []struct {
		name  string
		steps func(c *session.Controller) error
		want  session.Phase
	}{
		{"nothing", func(*session.Controller) error { return nil }, session.Idle{}},
		{"character only", func(c *session.Controller) error {
			return c.SelectCharacter("liam")
		}, session.CharacterChosen{}},
		{"subject only", func(c *session.Controller) error {
			return c.SelectSubject("math")
		}, session.SubjectChosen{}},
		{"mode only", func(c *session.Controller) error {
			return c.SelectMode("game")
		}, session.Idle{}},
		{"subject then character", func(c *session.Controller) error {
			return errors.Join(c.SelectSubject("math"), c.SelectCharacter("liam"))
		}, session.SubjectChosen{}},
		{"mode first then both", func(c *session.Controller) error {
			return errors.Join(c.SelectMode("LEARN"), c.SelectSubject("music"), c.SelectCharacter("emma"))
		}, session.ModeChosen{}},
		{"character subject mode", func(c *session.Controller) error {
			return errors.Join(c.SelectCharacter("emma"), c.SelectSubject("math"), c.SelectMode("game"))
		}, session.ModeChosen{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeGenerator{exp: gameExperience(5)}, nil)
			if err := tt.steps(h.ctrl); err != nil {
				t.Fatalf("selection error = %v", err)
			}
			if got := h.ctrl.State().Phase; got != tt.want {
				t.Errorf("Phase = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelection_Errors(t *testing.T) {
	h := newHarness(t, &fakeGenerator{exp: gameExperience(5)}, nil)

	if err := h.ctrl.SelectCharacter("dragon"); !errors.Is(err, session.ErrUnknownCharacter) {
		t.Errorf("SelectCharacter(dragon) error = %v, want ErrUnknownCharacter", err)
	}
	if err := h.ctrl.SelectSubject("chemistry"); !errors.Is(err, session.ErrUnknownSubject) {
		t.Errorf("SelectSubject(chemistry) error = %v, want ErrUnknownSubject", err)
	}
	if err := h.ctrl.SelectMode("quiz"); err == nil {
		t.Error("SelectMode(quiz) should fail")
	}
}

func TestGenerate_RequiresAllSelections(t *testing.T) {
	tests := []struct {
		name                     string
		character, subject, mode string
	}{
		{"character only", "liam", "", ""},
		{"character and subject", "liam", "math", ""},
		{"character and mode", "liam", "", "game"},
		{"subject and mode", "", "math", "game"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{exp: gameExperience(5)}
			h := newHarness(t, gen, nil)
			if tt.character != "" {
				_ = h.ctrl.SelectCharacter(tt.character)
			}
			if tt.subject != "" {
				_ = h.ctrl.SelectSubject(tt.subject)
			}
			if tt.mode != "" {
				_ = h.ctrl.SelectMode(tt.mode)
			}

			if h.ctrl.Generate(t.Context()) {
				t.Fatal("Generate() = true, want no-op")
			}
			h.ctrl.Wait()
			if n := len(gen.Requests()); n != 0 {
				t.Errorf("generation requests = %d, want 0", n)
			}
			if _, ok := h.ctrl.State().Phase.(session.Generating); ok {
				t.Error("phase should not be Generating")
			}
		})
	}
}

func TestGame_OutroByScore(t *testing.T) {
	tests := []struct {
		name        string
		transcripts []string
		wantCorrect int
		wantSuccess bool
		wantLevel   int
	}{
		{"three correct succeeds", []string{"one", "2", "Three!", "nine", "ten"}, 3, true, 3},
		{"two correct retries", []string{"1", "TWO", "seven", "nine", "ten"}, 2, false, 1},
		{"all correct", []string{"one", "two", "three", "four", "five"}, 5, true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{exp: gameExperience(5)}
			var (
				mu     sync.Mutex
				phases []session.Phase
			)
			h := newHarness(t, gen, nil, func(cfg *session.Config) {
				cfg.OnChange = func(s session.State) {
					mu.Lock()
					phases = append(phases, s.Phase)
					mu.Unlock()
				}
			})
			h.choose(t, "emma", "math", "game")

			if !h.ctrl.Generate(t.Context()) {
				t.Fatal("Generate() = false")
			}
			h.answerAll(t, tt.transcripts)
			h.ctrl.Wait()

			mu.Lock()
			defer mu.Unlock()
			if !slices.Contains(phases, session.Phase(session.Outro{Success: tt.wantSuccess})) {
				t.Errorf("phases %v never reached Outro{Success: %v}", phases, tt.wantSuccess)
			}

			req := gen.Requests()[0]
			want := experience.GenerateRequest{Character: "Princess Emma", Subject: "Math", Mode: experience.ModeGame, Level: 2}
			if req != want {
				t.Errorf("generate request = %+v, want %+v", req, want)
			}

			clips := h.player.Clips()
			last := clips[len(clips)-1]
			wantAudio := "cmV0cnk="
			if tt.wantSuccess {
				wantAudio = "c3VjY2Vzcw=="
			}
			if last.Kind != session.ClipOutro || last.Audio != wantAudio {
				t.Errorf("last clip = %+v, want outro %q", last, wantAudio)
			}

			reports := h.reporter.Requests()
			if len(reports) != 1 {
				t.Fatalf("reports = %d, want 1", len(reports))
			}
			if r := reports[0]; r.UserID != "child-1" || *r.TotalQuestions != 5 || *r.CorrectAnswers != tt.wantCorrect {
				t.Errorf("report = %s %d/%d, want child-1 %d/5", r.UserID, *r.CorrectAnswers, *r.TotalQuestions, tt.wantCorrect)
			}

			if got := h.ctrl.Level("math"); got != tt.wantLevel {
				t.Errorf("Level(math) = %d, want %d", got, tt.wantLevel)
			}

			s := h.ctrl.State()
			if !isIdle(s) || s.Selection != (session.Selection{}) || s.Experience != nil || s.CorrectAnswers != 0 {
				t.Errorf("state after outro = %+v, want cleared Idle", s)
			}
		})
	}
}

func TestGame_ClipOrder(t *testing.T) {
	gen := &fakeGenerator{exp: gameExperience(2)}
	h := newHarness(t, gen, nil)
	h.choose(t, "liam", "math", "game")

	h.ctrl.Generate(t.Context())
	h.answerAll(t, []string{"one", "two"})
	h.ctrl.Wait()

	want := []session.ClipKind{
		session.ClipIntro, session.ClipQuestion, session.ClipFeedback,
		session.ClipQuestion, session.ClipFeedback,
		session.ClipOutro,
	}
	if got := h.player.Kinds(); !slices.Equal(got, want) {
		t.Errorf("clips = %v, want %v", got, want)
	}

	fbs := gen.Feedbacks()
	if len(fbs) != 2 {
		t.Fatalf("feedback requests = %d, want 2", len(fbs))
	}
	if fbs[0].Type != experience.FeedbackType || fbs[0].Character != "Liam" || !fbs[0].IsCorrect {
		t.Errorf("feedback request = %+v", fbs[0])
	}
	if fbs[0].QuestionData.Audio != "" {
		t.Error("feedback request should not carry question audio")
	}
	if fbs[0].QuestionData.Answer != "{1, one}" {
		t.Errorf("question data answer = %q", fbs[0].QuestionData.Answer)
	}
}

func TestGame_FeedbackFailureFallsBack(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"transport error", &fakeGenerator{exp: gameExperience(2), feedbackErr: errors.New("connection reset")}},
		{"null audio", &fakeGenerator{exp: gameExperience(2), noFeedbackAudio: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.gen, nil)
			h.choose(t, "olivia", "math", "game")
			h.ctrl.Generate(t.Context())

			h.answerAll(t, []string{"one"})
			waitFor(t, "evaluating(1)", func() bool {
				p, ok := h.ctrl.State().Phase.(session.Evaluating)
				return ok && p.Index == 1
			})

			s := h.ctrl.State()
			if s.CorrectAnswers != 1 {
				t.Errorf("CorrectAnswers = %d, want 1", s.CorrectAnswers)
			}
			if s.CurrentQuestion != 1 {
				t.Errorf("CurrentQuestion = %d, want 1", s.CurrentQuestion)
			}
			var cue *session.Clip
			for _, c := range h.player.Clips() {
				if c.Kind == session.ClipCue {
					cue = &c
				}
				if c.Kind == session.ClipFeedback {
					t.Error("feedback narration should not play")
				}
			}
			if cue == nil || !cue.Correct {
				t.Errorf("cue = %+v, want a correct cue", cue)
			}
		})
	}
}

func TestGame_FeedbackMessageClearedOnAdvance(t *testing.T) {
	exp := gameExperience(2)
	exp.Questions[0].WrongResponse = "Oops, it was one."
	gen := &fakeGenerator{exp: exp}
	player := &session.MockPlayer{Hold: true}
	h := newHarness(t, gen, player)
	h.choose(t, "oliver", "music", "game")
	h.ctrl.Generate(t.Context())

	waitFor(t, "intro", func() bool { return len(player.Clips()) == 1 })
	player.Release()
	waitFor(t, "question", func() bool { return len(player.Clips()) == 2 })
	player.Release()

	h.answerAll(t, []string{"eleven"})
	waitFor(t, "feedback clip", func() bool { return len(player.Clips()) == 3 })

	s := h.ctrl.State()
	if s.Feedback == nil || s.Feedback.Correct || s.Feedback.Message != "Oops, it was one." {
		t.Errorf("Feedback = %+v, want wrong answer message", s.Feedback)
	}

	player.Release()
	waitFor(t, "next question", func() bool {
		p, ok := h.ctrl.State().Phase.(session.Narrating)
		return ok && p.Index == 1
	})
	if fb := h.ctrl.State().Feedback; fb != nil {
		t.Errorf("Feedback = %+v, want cleared after advancing", fb)
	}
}

func TestBack_DuringNarrating(t *testing.T) {
	player := &session.MockPlayer{Hold: true}
	h := newHarness(t, &fakeGenerator{exp: gameExperience(5)}, player)
	h.choose(t, "emma", "math", "game")
	h.ctrl.Generate(t.Context())

	waitFor(t, "intro playing", func() bool { return len(player.Clips()) == 1 })
	if _, ok := h.ctrl.State().Phase.(session.Narrating); !ok {
		t.Fatalf("Phase = %v, want Narrating", h.ctrl.State().Phase)
	}

	before := h.ctrl.State().SessionID
	h.ctrl.Back()
	h.ctrl.Wait()

	s := h.ctrl.State()
	if !isIdle(s) {
		t.Errorf("Phase = %v, want Idle", s.Phase)
	}
	if s.Selection != (session.Selection{}) {
		t.Errorf("Selection = %+v, want cleared", s.Selection)
	}
	if s.SessionID == before {
		t.Error("Back should start a new session id")
	}
	if player.Stops() == 0 {
		t.Error("Back should stop playback")
	}
	if len(player.Clips()) != 1 {
		t.Errorf("clips = %v, want only the interrupted intro", player.Kinds())
	}
	if len(h.reporter.Requests()) != 0 {
		t.Error("abandoned session should not report progress")
	}
	types := h.events.Types()
	if types[len(types)-1] != session.EventSessionAbandoned {
		t.Errorf("events = %v, want trailing session_abandoned", types)
	}
}

func TestBack_DiscardsLateGenerationResponse(t *testing.T) {
	gen := &fakeGenerator{exp: gameExperience(5), gate: make(chan struct{})}
	h := newHarness(t, gen, nil)
	h.choose(t, "emma", "math", "game")
	h.ctrl.Generate(t.Context())

	waitFor(t, "generation request", func() bool { return len(gen.Requests()) == 1 })
	h.ctrl.Back()

	afterBack := h.ctrl.State()
	close(gen.gate)
	h.ctrl.Wait()

	s := h.ctrl.State()
	if !isIdle(s) || s.Experience != nil || s.SessionID != afterBack.SessionID {
		t.Errorf("state changed after late response: %+v", s)
	}
	if n := len(h.player.Clips()); n != 0 {
		t.Errorf("clips played = %d, want 0", n)
	}
}

func TestGenerate_FailureReturnsToModeChosen(t *testing.T) {
	gen := &fakeGenerator{exp: gameExperience(5), err: errors.New("endpoint returned 500: boom")}
	h := newHarness(t, gen, nil)
	h.choose(t, "emma", "math", "game")

	if !h.ctrl.Generate(t.Context()) {
		t.Fatal("Generate() = false")
	}
	h.ctrl.Wait()

	s := h.ctrl.State()
	if _, ok := s.Phase.(session.ModeChosen); !ok {
		t.Errorf("Phase = %v, want ModeChosen", s.Phase)
	}
	if !strings.Contains(s.Err, "boom") {
		t.Errorf("Err = %q, want the generation error", s.Err)
	}
	if s.Selection.Character.ID != "emma" || s.Selection.Subject.ID != "math" {
		t.Errorf("Selection = %+v, want kept", s.Selection)
	}
	if !slices.Contains(h.events.Types(), session.EventGenerationFailed) {
		t.Errorf("events = %v, want generation_failed", h.events.Types())
	}

	// Retry is manual and clears the error.
	gen.err = nil
	if !h.ctrl.Generate(t.Context()) {
		t.Fatal("retry Generate() = false")
	}
	waitFor(t, "evaluating(0)", func() bool {
		_, ok := h.ctrl.State().Phase.(session.Evaluating)
		return ok
	})
	if s := h.ctrl.State(); s.Err != "" {
		t.Errorf("Err = %q, want cleared on retry", s.Err)
	}
	if n := len(gen.Requests()); n != 2 {
		t.Errorf("generation requests = %d, want 2", n)
	}
}

func TestLearnMode_ReturnsToIdle(t *testing.T) {
	gen := &fakeGenerator{exp: learnExperience()}
	h := newHarness(t, gen, nil)
	h.choose(t, "emma", "language", "learn")

	h.ctrl.Generate(t.Context())
	h.ctrl.Wait()

	if got := h.player.Kinds(); !slices.Equal(got, []session.ClipKind{session.ClipContent}) {
		t.Errorf("clips = %v, want [content]", got)
	}
	if !isIdle(h.ctrl.State()) {
		t.Errorf("Phase = %v, want Idle", h.ctrl.State().Phase)
	}
	if n := len(h.reporter.Requests()); n != 0 {
		t.Errorf("reports = %d, want 0 for learn mode", n)
	}
	if got := h.events.Types(); !slices.Equal(got, []string{session.EventSessionStarted, session.EventSessionCompleted}) {
		t.Errorf("events = %v", got)
	}
	if req := gen.Requests()[0]; req.Mode != experience.ModeLearn || req.Level != 1 {
		t.Errorf("request = %+v", req)
	}
}

func TestLevel_FloorAndPersistence(t *testing.T) {
	gen := &fakeGenerator{exp: gameExperience(5)}
	h := newHarness(t, gen, nil)

	if got := h.ctrl.Level("language"); got != 1 {
		t.Fatalf("Level(language) = %d, want 1", got)
	}

	for range 2 {
		h.choose(t, "liam", "language", "game")
		h.ctrl.Generate(t.Context())
		h.answerAll(t, []string{"x", "x", "x", "x", "x"})
		h.ctrl.Wait()
	}
	if got := h.ctrl.Level("language"); got != 1 {
		t.Errorf("Level(language) = %d, want floor 1", got)
	}

	h.choose(t, "liam", "language", "game")
	h.ctrl.Generate(t.Context())
	h.answerAll(t, []string{"1", "2", "3", "x", "x"})
	h.ctrl.Wait()
	h.ctrl.Reset()

	if got := h.ctrl.Level("language"); got != 2 {
		t.Errorf("Level(language) = %d, want 2 after success and reset", got)
	}
	if got := h.ctrl.Level("unknown"); got != 1 {
		t.Errorf("Level(unknown) = %d, want 1", got)
	}
}

func TestSelection_BusyWhilePlaying(t *testing.T) {
	player := &session.MockPlayer{Hold: true}
	h := newHarness(t, &fakeGenerator{exp: gameExperience(5)}, player)
	h.choose(t, "emma", "math", "game")
	h.ctrl.Generate(t.Context())
	waitFor(t, "intro playing", func() bool { return len(player.Clips()) == 1 })

	if err := h.ctrl.SelectCharacter("liam"); !errors.Is(err, session.ErrBusy) {
		t.Errorf("SelectCharacter() error = %v, want ErrBusy", err)
	}
	if h.ctrl.Generate(t.Context()) {
		t.Error("Generate() while playing = true, want false")
	}
}

func TestSubmitTranscript_NotAnswering(t *testing.T) {
	h := newHarness(t, &fakeGenerator{exp: gameExperience(5)}, nil)

	if err := h.ctrl.SubmitTranscript("five"); !errors.Is(err, session.ErrNotAnswering) {
		t.Errorf("SubmitTranscript() in Idle error = %v, want ErrNotAnswering", err)
	}

	h.choose(t, "emma", "math", "game")
	h.ctrl.Generate(t.Context())
	h.answerAll(t, []string{"one"})
	if err := h.ctrl.SubmitTranscript("one"); !errors.Is(err, session.ErrNotAnswering) {
		t.Errorf("second SubmitTranscript() error = %v, want ErrNotAnswering", err)
	}
}

func TestToggleListening(t *testing.T) {
	var (
		mu  sync.Mutex
		now = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	)
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	h := newHarness(t, &fakeGenerator{exp: gameExperience(5)}, nil, func(cfg *session.Config) {
		cfg.Clock = clock
	})

	if h.ctrl.ToggleListening() {
		t.Fatal("ToggleListening() in Idle = true, want ignored")
	}

	h.choose(t, "emma", "math", "game")
	h.ctrl.Generate(t.Context())
	waitFor(t, "evaluating(0)", func() bool {
		_, ok := h.ctrl.State().Phase.(session.Evaluating)
		return ok
	})

	steps := []struct {
		after         time.Duration
		wantAccepted  bool
		wantListening bool
	}{
		{2 * time.Second, true, true},
		{500 * time.Millisecond, false, true},
		{600 * time.Millisecond, true, false},
		{100 * time.Millisecond, false, false},
		{2 * time.Second, true, true},
	}
	for i, st := range steps {
		advance(st.after)
		if got := h.ctrl.ToggleListening(); got != st.wantAccepted {
			t.Errorf("step %d: ToggleListening() = %v, want %v", i, got, st.wantAccepted)
		}
		if got := h.ctrl.State().Listening; got != st.wantListening {
			t.Errorf("step %d: Listening = %v, want %v", i, got, st.wantListening)
		}
	}

	if err := h.ctrl.SubmitTranscript("one"); err != nil {
		t.Fatalf("SubmitTranscript() error = %v", err)
	}
	if h.ctrl.State().Listening {
		t.Error("Listening should stop once an answer is submitted")
	}
}

func TestToggleListening_BlockedWhileNarrating(t *testing.T) {
	player := &session.MockPlayer{Hold: true}
	h := newHarness(t, &fakeGenerator{exp: gameExperience(5)}, player)
	h.choose(t, "emma", "math", "game")
	h.ctrl.Generate(t.Context())

	waitFor(t, "intro playing", func() bool { return len(player.Clips()) == 1 })
	if h.ctrl.ToggleListening() {
		t.Error("ToggleListening() during narration = true, want ignored")
	}
}

func TestReporterFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, &fakeGenerator{exp: gameExperience(5)}, nil)
	h.reporter.err = errors.New("progress endpoint down")
	h.choose(t, "emma", "math", "game")

	h.ctrl.Generate(t.Context())
	h.answerAll(t, []string{"1", "2", "3", "4", "5"})
	h.ctrl.Wait()

	if !isIdle(h.ctrl.State()) {
		t.Errorf("Phase = %v, want Idle", h.ctrl.State().Phase)
	}
	if len(h.reporter.Requests()) != 1 {
		t.Error("report should have been attempted once")
	}
}

func TestGame_HangingFeedbackTimesOut(t *testing.T) {
	gen := &fakeGenerator{exp: gameExperience(2), hangFeedback: true}
	h := newHarness(t, gen, nil, func(cfg *session.Config) {
		cfg.FeedbackTimeout = 20 * time.Millisecond
	})
	h.choose(t, "liam", "math", "game")
	h.ctrl.Generate(t.Context())

	h.answerAll(t, []string{"one"})
	waitFor(t, "evaluating(1)", func() bool {
		p, ok := h.ctrl.State().Phase.(session.Evaluating)
		return ok && p.Index == 1
	})

	if s := h.ctrl.State(); s.CurrentQuestion != 1 || s.CorrectAnswers != 1 {
		t.Errorf("state = question %d, correct %d, want 1/1", s.CurrentQuestion, s.CorrectAnswers)
	}
	if !slices.Contains(h.player.Kinds(), session.ClipCue) {
		t.Errorf("clips = %v, want a cue after the feedback timeout", h.player.Kinds())
	}
}

func TestGenerate_UnplayableExperience(t *testing.T) {
	tests := []struct {
		name string
		exp  *experience.Experience
		mode string
	}{
		{"game without questions", gameExperience(0), "game"},
		{"nil game", nil, "game"},
		{"nil lesson", nil, "learn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeGenerator{exp: tt.exp}, nil)
			h.choose(t, "emma", "math", tt.mode)

			if !h.ctrl.Generate(t.Context()) {
				t.Fatal("Generate() = false")
			}
			h.ctrl.Wait()

			s := h.ctrl.State()
			if _, ok := s.Phase.(session.ModeChosen); !ok {
				t.Errorf("Phase = %v, want ModeChosen", s.Phase)
			}
			if !strings.Contains(s.Err, "not playable") {
				t.Errorf("Err = %q, want the unplayable error", s.Err)
			}
			if n := len(h.reporter.Requests()); n != 0 {
				t.Errorf("reports = %d, want none", n)
			}
			if got := h.ctrl.Level("math"); got != 2 {
				t.Errorf("Level(math) = %d, want unchanged 2", got)
			}
			if len(h.player.Clips()) != 0 {
				t.Errorf("clips = %v, want nothing played", h.player.Kinds())
			}
			if !slices.Contains(h.events.Types(), session.EventGenerationFailed) {
				t.Errorf("events = %v, want generation_failed", h.events.Types())
			}
		})
	}
}

func TestToggleListening_RejectedPressRestartsCooldown(t *testing.T) {
	var (
		mu  sync.Mutex
		now = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	)
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
	player := &session.MockPlayer{Hold: true}
	h := newHarness(t, &fakeGenerator{exp: gameExperience(5)}, player, func(cfg *session.Config) {
		cfg.Clock = func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
	})
	h.choose(t, "emma", "math", "game")
	h.ctrl.Generate(t.Context())

	waitFor(t, "intro playing", func() bool { return len(player.Clips()) == 1 })
	if h.ctrl.ToggleListening() {
		t.Fatal("ToggleListening() during narration = true, want ignored")
	}
	player.Release()
	waitFor(t, "question playing", func() bool { return len(player.Clips()) == 2 })
	player.Release()
	waitFor(t, "evaluating(0)", func() bool {
		_, ok := h.ctrl.State().Phase.(session.Evaluating)
		return ok
	})

	advance(500 * time.Millisecond)
	if h.ctrl.ToggleListening() {
		t.Error("ToggleListening() 500ms after a rejected press = true, want ignored")
	}
	advance(time.Second)
	if !h.ctrl.ToggleListening() {
		t.Error("ToggleListening() after the cooldown = false, want accepted")
	}
	if !h.ctrl.State().Listening {
		t.Error("Listening = false, want true")
	}
}
