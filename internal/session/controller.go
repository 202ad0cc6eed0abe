// Package session runs one player's play-through: selection, generation,
// narration, answer scoring and the outro.
//
// All progression after Generate happens on a single goroutine that awaits
// each step in turn. Back and Reset invalidate that goroutine by bumping an
// epoch; anything it observes afterwards is discarded.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/buzzle/internal/answer"
	"github.com/p-n-ai/buzzle/internal/catalog"
	"github.com/p-n-ai/buzzle/internal/experience"
	"github.com/p-n-ai/buzzle/internal/platform/observe"
	"github.com/p-n-ai/buzzle/internal/progress"
)

const (
	defaultNarrationGap     = time.Second
	defaultFeedbackFallback = 3 * time.Second
	defaultFeedbackTimeout  = 10 * time.Second
	defaultToggleCooldown   = time.Second
	defaultSuccessThreshold = 3
)

var (
	// ErrNotAnswering is returned when a transcript arrives outside Evaluating
	// or after the current question was already answered.
	ErrNotAnswering = errors.New("session is not waiting for an answer")
	// ErrBusy is returned when a selection changes during a play-through.
	ErrBusy = errors.New("session is playing")

	ErrUnknownCharacter = errors.New("unknown character")
	ErrUnknownSubject   = errors.New("unknown subject")
	// ErrUnplayable means the generated experience has nothing to play.
	ErrUnplayable = errors.New("generated experience is not playable")
)

// Generator produces experiences and feedback narration.
// Both *genclient.Client and *generator.Service satisfy it.
type Generator interface {
	Generate(ctx context.Context, req experience.GenerateRequest) (*experience.Experience, error)
	Feedback(ctx context.Context, req experience.FeedbackRequest) (experience.FeedbackResponse, error)
}

// Reporter receives the final tally of a game.
type Reporter interface {
	Report(ctx context.Context, req progress.Request) error
}

// Config holds dependencies for a controller.
type Config struct {
	UserID    string
	Generator Generator
	Player    Player
	Catalog   *catalog.Catalog // required
	Reporter  Reporter         // optional
	Events    EventLogger      // default NopEventLogger
	Metrics   *observe.Metrics // optional

	NarrationGap     time.Duration // pause between clips (default 1s)
	FeedbackFallback time.Duration // advance delay when feedback has no audio (default 3s)
	FeedbackTimeout  time.Duration // bound on one feedback request (default 10s)
	ToggleCooldown   time.Duration // listen toggle debounce (default 1s)
	SuccessThreshold int           // correct answers for the success outro (default 3)

	// OnChange is called with a fresh snapshot after every state change. It
	// must not call back into the controller's mutating methods.
	OnChange func(State)
	Clock    func() time.Time
}

// Controller is the session state machine for one player.
type Controller struct {
	userID   string
	gen      Generator
	catalog  *catalog.Catalog
	reporter Reporter
	events   EventLogger
	metrics  *observe.Metrics
	narrator *Narrator
	onChange func(State)
	now      func() time.Time

	feedbackFallback time.Duration
	feedbackTimeout  time.Duration
	toggleCooldown   time.Duration
	threshold        int

	notifyMu sync.Mutex

	mu         sync.Mutex
	state      State
	epoch      uint64
	cancel     context.CancelFunc
	answers    chan string
	awaiting   bool
	lastToggle time.Time
	levels     map[string]int

	wg sync.WaitGroup
}

// New creates a controller in Idle.
func New(cfg Config) *Controller {
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	gap := cfg.NarrationGap
	if gap == 0 {
		gap = defaultNarrationGap
	}
	fallback := cfg.FeedbackFallback
	if fallback == 0 {
		fallback = defaultFeedbackFallback
	}
	feedbackTimeout := cfg.FeedbackTimeout
	if feedbackTimeout == 0 {
		feedbackTimeout = defaultFeedbackTimeout
	}
	cooldown := cfg.ToggleCooldown
	if cooldown == 0 {
		cooldown = defaultToggleCooldown
	}
	threshold := cfg.SuccessThreshold
	if threshold == 0 {
		threshold = defaultSuccessThreshold
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	c := &Controller{
		userID:           cfg.UserID,
		gen:              cfg.Generator,
		catalog:          cfg.Catalog,
		reporter:         cfg.Reporter,
		events:           events,
		metrics:          cfg.Metrics,
		narrator:         NewNarrator(cfg.Player, gap, cfg.Metrics),
		onChange:         cfg.OnChange,
		now:              clock,
		feedbackFallback: fallback,
		feedbackTimeout:  feedbackTimeout,
		toggleCooldown:   cooldown,
		threshold:        threshold,
		levels:           map[string]int{},
	}
	c.resetLocked()
	return c
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.Feedback != nil {
		fb := *s.Feedback
		s.Feedback = &fb
	}
	return s
}

// Level returns the level the next game on subjectID is generated at.
func (c *Controller) Level(subjectID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.levelLocked(subjectID)
}

func (c *Controller) levelLocked(subjectID string) int {
	if l, ok := c.levels[subjectID]; ok {
		return l
	}
	if s, ok := c.catalog.Subject(subjectID); ok && s.Level > 0 {
		return s.Level
	}
	return 1
}

// SelectCharacter sets the character. Selections may come in any order.
func (c *Controller) SelectCharacter(id string) error {
	ch, ok := c.catalog.Character(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCharacter, id)
	}
	return c.selectWith(func(s *Selection) { s.Character = ch })
}

// SelectSubject sets the subject.
func (c *Controller) SelectSubject(id string) error {
	sub, ok := c.catalog.Subject(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubject, id)
	}
	return c.selectWith(func(s *Selection) { s.Subject = sub })
}

// SelectMode sets the mode ("game" or "learn").
func (c *Controller) SelectMode(mode string) error {
	m, err := experience.ParseMode(mode)
	if err != nil {
		return err
	}
	return c.selectWith(func(s *Selection) { s.Mode = m })
}

func (c *Controller) selectWith(fn func(*Selection)) error {
	c.mu.Lock()
	if !selecting(c.state.Phase) {
		c.mu.Unlock()
		return ErrBusy
	}
	fn(&c.state.Selection)
	c.state.Phase = c.state.Selection.phase()
	c.mu.Unlock()

	c.notify()
	return nil
}

// playthrough is the immutable context of one Generate call.
type playthrough struct {
	epoch     uint64
	sessionID string
	sel       Selection
	level     int
	answers   <-chan string

	// netCtx outlives Back so in-flight requests finish and are discarded;
	// ctx is cancelled by Back and stops playback.
	netCtx context.Context
	ctx    context.Context
}

// Generate starts a play-through. It returns false, issuing no request, unless
// character, subject and mode are all selected and nothing is playing.
// Requests made by the play-through use ctx.
func (c *Controller) Generate(ctx context.Context) bool {
	c.mu.Lock()
	if _, ok := c.state.Phase.(ModeChosen); !ok || !c.state.Selection.Complete() {
		c.mu.Unlock()
		return false
	}

	c.epoch++
	playCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.answers = make(chan string, 1)
	c.awaiting = false
	c.state.Phase = Generating{}
	c.state.Err = ""

	p := &playthrough{
		epoch:     c.epoch,
		sessionID: c.state.SessionID,
		sel:       c.state.Selection,
		level:     c.levelLocked(c.state.Selection.Subject.ID),
		answers:   c.answers,
		netCtx:    ctx,
		ctx:       playCtx,
	}
	c.wg.Add(1)
	c.mu.Unlock()

	slog.Info("session started",
		"session_id", p.sessionID,
		"user_id", c.userID,
		"character", p.sel.Character.ID,
		"subject", p.sel.Subject.ID,
		"mode", p.sel.Mode,
		"level", p.level,
	)
	c.logEvent(p.sessionID, EventSessionStarted, map[string]any{
		"character": p.sel.Character.ID,
		"subject":   p.sel.Subject.ID,
		"mode":      string(p.sel.Mode),
		"level":     p.level,
	})
	c.notify()

	go func() {
		defer c.wg.Done()
		defer cancel()
		c.run(p)
	}()
	return true
}

// ToggleListening switches the microphone. It returns false when the toggle
// is ignored: within the cooldown of the previous press, or when starting to
// listen is not allowed (narration playing, no question awaiting an answer).
// Every press outside the cooldown restarts it, accepted or not.
func (c *Controller) ToggleListening() bool {
	c.mu.Lock()
	now := c.now()
	if !c.lastToggle.IsZero() && now.Sub(c.lastToggle) < c.toggleCooldown {
		c.mu.Unlock()
		return false
	}
	c.lastToggle = now
	if c.state.Listening {
		c.state.Listening = false
	} else {
		_, evaluating := c.state.Phase.(Evaluating)
		if !evaluating || !c.awaiting || c.narrator.Playing() {
			c.mu.Unlock()
			return false
		}
		c.state.Listening = true
	}
	c.mu.Unlock()

	c.notify()
	return true
}

// SubmitTranscript answers the current question.
func (c *Controller) SubmitTranscript(text string) error {
	c.mu.Lock()
	if _, ok := c.state.Phase.(Evaluating); !ok || !c.awaiting {
		c.mu.Unlock()
		return ErrNotAnswering
	}
	select {
	case c.answers <- text:
	default:
		c.mu.Unlock()
		return ErrNotAnswering
	}
	c.awaiting = false
	c.state.Listening = false
	c.mu.Unlock()

	c.notify()
	return nil
}

// Back leaves the play screen: playback stops and every field is cleared.
func (c *Controller) Back() {
	c.abandon("back")
}

// Reset returns to Idle with every field cleared.
func (c *Controller) Reset() {
	c.abandon("reset")
}

// Wait blocks until every play-through goroutine has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) abandon(reason string) {
	c.mu.Lock()
	prev := c.state
	c.resetLocked()
	c.mu.Unlock()

	c.narrator.Stop()
	if !selecting(prev.Phase) {
		slog.Info("session abandoned",
			"session_id", prev.SessionID,
			"reason", reason,
			"phase", prev.Phase.String(),
		)
		c.logEvent(prev.SessionID, EventSessionAbandoned, map[string]any{
			"reason":          reason,
			"phase":           prev.Phase.String(),
			"correct_answers": prev.CorrectAnswers,
		})
	}
	c.notify()
}

// resetLocked starts a fresh session. Levels are kept.
func (c *Controller) resetLocked() {
	c.epoch++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.answers = nil
	c.awaiting = false
	c.state = State{
		SessionID: uuid.NewString(),
		UserID:    c.userID,
		Phase:     Idle{},
	}
}

// update applies fn if the play-through epoch is still current.
func (c *Controller) update(epoch uint64, fn func(*State)) bool {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return false
	}
	fn(&c.state)
	c.mu.Unlock()

	c.notify()
	return true
}

func (c *Controller) current(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return epoch == c.epoch
}

func (c *Controller) notify() {
	if c.onChange == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.onChange(c.State())
}

func (c *Controller) logEvent(sessionID, eventType string, data map[string]any) {
	err := c.events.LogEvent(Event{
		SessionID: sessionID,
		UserID:    c.userID,
		EventType: eventType,
		Data:      data,
	})
	if err != nil {
		slog.Warn("failed to log session event", "type", eventType, "error", err)
	}
}

func (c *Controller) run(p *playthrough) {
	exp, err := c.gen.Generate(p.netCtx, experience.GenerateRequest{
		Character: p.sel.Character.Name,
		Subject:   p.sel.Subject.Name,
		Mode:      p.sel.Mode,
		Level:     p.level,
	})
	if err == nil {
		err = playable(p.sel.Mode, exp)
	}
	if err != nil {
		ok := c.update(p.epoch, func(s *State) {
			s.Phase = ModeChosen{}
			s.Err = err.Error()
		})
		if !ok {
			slog.Debug("discarding late generation failure", "session_id", p.sessionID, "error", err)
			return
		}
		slog.Error("generation failed", "session_id", p.sessionID, "error", err)
		c.logEvent(p.sessionID, EventGenerationFailed, map[string]any{"error": err.Error()})
		return
	}

	ok := c.update(p.epoch, func(s *State) {
		s.Experience = exp
		s.CurrentQuestion = 0
		s.Phase = Narrating{Index: 0}
	})
	if !ok {
		slog.Debug("discarding late generation response", "session_id", p.sessionID)
		return
	}

	if p.sel.Mode == experience.ModeLearn {
		c.playLesson(p, exp)
		return
	}
	c.playGame(p, exp)
}

// playable rejects experiences that would skip straight to the outro.
func playable(mode experience.Mode, exp *experience.Experience) error {
	switch {
	case exp == nil:
		return fmt.Errorf("%w: empty response", ErrUnplayable)
	case mode == experience.ModeGame && len(exp.Questions) == 0:
		return fmt.Errorf("%w: game has no questions", ErrUnplayable)
	}
	return nil
}

func (c *Controller) playLesson(p *playthrough, exp *experience.Experience) {
	if err := c.narrator.Play(p.ctx, Clip{Kind: ClipContent, Text: exp.Content, Audio: exp.Audio}); err != nil {
		return
	}
	if _, ok := c.finish(p.epoch, p.sel.Subject.ID, 0); !ok {
		return
	}
	c.logEvent(p.sessionID, EventSessionCompleted, map[string]any{"mode": string(experience.ModeLearn)})
}

func (c *Controller) playGame(p *playthrough, exp *experience.Experience) {
	correct := 0
	for i, q := range exp.Questions {
		ok := c.update(p.epoch, func(s *State) {
			s.Phase = Narrating{Index: i}
			s.CurrentQuestion = i
			s.Feedback = nil
		})
		if !ok {
			return
		}

		clips := make([]Clip, 0, 2)
		if i == 0 {
			clips = append(clips, Clip{Kind: ClipIntro, Text: exp.Intro, Audio: exp.IntroAudio})
		}
		clips = append(clips, Clip{Kind: ClipQuestion, Text: q.Text, Audio: q.Audio})
		if err := c.narrator.Play(p.ctx, clips...); err != nil {
			return
		}

		ok = c.update(p.epoch, func(s *State) {
			s.Phase = Evaluating{Index: i}
			c.awaiting = true
		})
		if !ok {
			return
		}

		var transcript string
		select {
		case <-p.ctx.Done():
			return
		case transcript = <-p.answers:
		}

		v := answer.Evaluate(transcript, q.Answer)
		if v.Correct {
			correct++
		}
		fb := &Feedback{Correct: v.Correct, Message: feedbackMessage(q, v.Correct), NearMiss: v.NearMiss()}
		if !c.update(p.epoch, func(s *State) {
			s.CorrectAnswers = correct
			s.Feedback = fb
			s.Listening = false
		}) {
			return
		}

		c.metrics.RecordAnswer(p.netCtx, v.Correct)
		slog.Info("answer scored",
			"session_id", p.sessionID,
			"question", i,
			"correct", v.Correct,
			"near_miss", v.NearMiss(),
			"similarity", v.Similarity,
		)
		c.logEvent(p.sessionID, EventAnswerScored, map[string]any{
			"question":   i,
			"transcript": v.Normalized,
			"correct":    v.Correct,
			"closest":    v.Closest,
			"similarity": v.Similarity,
		})

		if !c.giveFeedback(p, q, v.Correct) {
			return
		}
	}

	c.playOutro(p, exp, correct)
}

// giveFeedback narrates the scored answer, or plays a cue and waits out the
// fallback delay when no narration is available, including when the request
// outlives feedbackTimeout. It returns false when the play-through was
// abandoned.
func (c *Controller) giveFeedback(p *playthrough, q experience.Question, correct bool) bool {
	data := q
	data.Audio = ""
	ctx, cancel := context.WithTimeout(p.netCtx, c.feedbackTimeout)
	resp, err := c.gen.Feedback(ctx, experience.FeedbackRequest{
		Type:         experience.FeedbackType,
		Character:    p.sel.Character.Name,
		IsCorrect:    correct,
		QuestionData: data,
	})
	cancel()
	if p.ctx.Err() != nil || !c.current(p.epoch) {
		return false
	}

	if err == nil && resp.HasAudio() {
		clip := Clip{Kind: ClipFeedback, Text: feedbackMessage(q, correct), Audio: *resp.Audio, Correct: correct}
		return c.narrator.Play(p.ctx, clip) == nil
	}

	if err != nil {
		slog.Warn("feedback request failed, using local cue", "session_id", p.sessionID, "error", err)
	}
	c.narrator.Cue(p.ctx, correct)

	timer := time.NewTimer(c.feedbackFallback)
	defer timer.Stop()
	select {
	case <-p.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Controller) playOutro(p *playthrough, exp *experience.Experience, correct int) {
	text, audio, success := exp.Outro(correct, c.threshold)
	if !c.update(p.epoch, func(s *State) {
		s.Phase = Outro{Success: success}
		s.Feedback = nil
	}) {
		return
	}
	if err := c.narrator.Play(p.ctx, Clip{Kind: ClipOutro, Text: text, Audio: audio}); err != nil {
		return
	}

	delta := -1
	if success {
		delta = 1
	}
	next, ok := c.finish(p.epoch, p.sel.Subject.ID, delta)
	if !ok {
		return
	}

	total := len(exp.Questions)
	c.metrics.RecordCompletion(p.netCtx, success)
	slog.Info("session completed",
		"session_id", p.sessionID,
		"user_id", c.userID,
		"total_questions", total,
		"correct_answers", correct,
		"success", success,
		"next_level", next,
	)
	c.logEvent(p.sessionID, EventSessionCompleted, map[string]any{
		"mode":            string(experience.ModeGame),
		"total_questions": total,
		"correct_answers": correct,
		"success":         success,
		"next_level":      next,
	})

	if c.reporter != nil {
		if err := c.reporter.Report(p.netCtx, progress.NewRequest(c.userID, total, correct)); err != nil {
			slog.Error("failed to report progress", "user_id", c.userID, "error", err)
		}
	}
}

// finish returns the controller to Idle after a completed play-through and
// moves the subject's level by delta (floor 1).
func (c *Controller) finish(epoch uint64, subjectID string, delta int) (int, bool) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return 0, false
	}
	level := max(c.levelLocked(subjectID)+delta, 1)
	c.levels[subjectID] = level
	c.resetLocked()
	c.mu.Unlock()

	c.notify()
	return level, true
}

func feedbackMessage(q experience.Question, correct bool) string {
	if correct {
		if q.CorrectResponse != "" {
			return q.CorrectResponse
		}
		return "Correct!"
	}
	if q.WrongResponse != "" {
		return q.WrongResponse
	}
	return "Not quite!"
}
