// Package generator produces experiences: it prompts the model, validates the
// reply and narrates every line in the character's voice.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/buzzle/internal/ai"
	"github.com/p-n-ai/buzzle/internal/catalog"
	"github.com/p-n-ai/buzzle/internal/experience"
	"github.com/p-n-ai/buzzle/internal/platform/observe"
	"github.com/p-n-ai/buzzle/internal/tts"
)

const (
	defaultMaxTokens      = 1000
	defaultTemperature    = 0.7
	defaultNarrationLimit = 4
)

var (
	// ErrInvalidRequest means a required generation field is absent.
	ErrInvalidRequest = errors.New("missing required fields")
	// ErrUnknownMode means the mode is neither game nor learn.
	ErrUnknownMode = errors.New("unknown mode")
)

// Completer is the model gateway used for generation.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
}

// Config holds dependencies for the generator service.
type Config struct {
	AI      Completer
	Speech  tts.Synthesizer
	Catalog *catalog.Catalog
	Metrics *observe.Metrics
	// NarrationLimit bounds concurrent synthesis calls (default 4).
	NarrationLimit int
}

// Service generates experiences and feedback narration.
type Service struct {
	ai      Completer
	speech  tts.Synthesizer
	catalog *catalog.Catalog
	metrics *observe.Metrics
	limit   int
}

// New creates a generator service.
func New(cfg Config) *Service {
	limit := cfg.NarrationLimit
	if limit <= 0 {
		limit = defaultNarrationLimit
	}
	return &Service{
		ai:      cfg.AI,
		speech:  cfg.Speech,
		catalog: cfg.Catalog,
		metrics: cfg.Metrics,
		limit:   limit,
	}
}

// Validate checks the request the way the generation endpoint does: every
// field must be present and the level positive.
func Validate(req experience.GenerateRequest) error {
	if strings.TrimSpace(req.Character) == "" ||
		strings.TrimSpace(req.Subject) == "" ||
		strings.TrimSpace(string(req.Mode)) == "" ||
		req.Level <= 0 {
		return ErrInvalidRequest
	}
	return nil
}

// resolveCharacter accepts either a catalog id or a display name.
func (s *Service) resolveCharacter(ref string) (catalog.Character, error) {
	if c, ok := s.catalog.Character(ref); ok {
		return c, nil
	}
	if c, ok := s.catalog.CharacterByName(ref); ok {
		return c, nil
	}
	return catalog.Character{}, fmt.Errorf("unknown character %q", ref)
}

// subjectName maps a subject id to its display name. Free-form subjects are
// passed through.
func (s *Service) subjectName(ref string) string {
	if subj, ok := s.catalog.Subject(ref); ok {
		return subj.Name
	}
	return ref
}

// Generate builds a new experience for req.
func (s *Service) Generate(ctx context.Context, req experience.GenerateRequest) (exp *experience.Experience, err error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	mode, err := experience.ParseMode(string(req.Mode))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}

	start := time.Now()
	defer func() { s.metrics.RecordGeneration(ctx, string(mode), time.Since(start), err) }()

	character, err := s.resolveCharacter(req.Character)
	if err != nil {
		return nil, err
	}

	task := ai.TaskGame
	if mode == experience.ModeLearn {
		task = ai.TaskLesson
	}
	prompt := BuildPrompt(mode, character.Name, character.PromptTone(), s.subjectName(req.Subject), req.Level)

	resp, err := s.ai.Complete(ctx, ai.CompletionRequest{
		Messages:    []ai.Message{{Role: "user", Content: prompt}},
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
		Task:        task,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", mode, err)
	}

	raw, err := experience.ExtractJSON(resp.Content)
	if err != nil {
		return nil, err
	}
	exp, err = experience.Decode(mode, raw)
	if err != nil {
		return nil, err
	}

	slog.Info("experience generated",
		"mode", string(mode),
		"character", character.ID,
		"subject", req.Subject,
		"level", req.Level,
		"provider", resp.Provider,
		"tokens", resp.TotalTokens(),
	)

	s.narrate(ctx, mode, exp, character.Voice)
	return exp, nil
}

type clip struct {
	kind string
	text string
	dst  *string
}

func clips(mode experience.Mode, exp *experience.Experience) []clip {
	if mode == experience.ModeLearn {
		return []clip{{"content", exp.Content, &exp.Audio}}
	}
	out := []clip{
		{"intro", exp.Intro, &exp.IntroAudio},
		{"outro_success", exp.OutroSuccess, &exp.OutroSuccessAudio},
		{"outro_retry", exp.OutroRetry, &exp.OutroRetryAudio},
	}
	for i := range exp.Questions {
		q := &exp.Questions[i]
		out = append(out, clip{"question", q.Text, &q.Audio})
	}
	return out
}

// narrate fills every audio field concurrently. A failed clip stays empty;
// playback skips it.
func (s *Service) narrate(ctx context.Context, mode experience.Mode, exp *experience.Experience, voice string) {
	if s.speech == nil {
		return
	}

	var g errgroup.Group
	g.SetLimit(s.limit)
	for _, c := range clips(mode, exp) {
		g.Go(func() error {
			audio, err := s.speech.Synthesize(ctx, c.text, voice)
			s.metrics.RecordClip(ctx, c.kind, err)
			if err != nil {
				slog.Warn("narration synthesis failed", "kind", c.kind, "voice", voice, "error", err)
				return nil
			}
			*c.dst = tts.EncodeAudio(audio)
			return nil
		})
	}
	_ = g.Wait()
}

// Feedback narrates the response to a scored answer. Synthesis failures
// yield a response without audio; the caller plays a local cue instead. The
// only error is ctx's.
func (s *Service) Feedback(ctx context.Context, req experience.FeedbackRequest) (experience.FeedbackResponse, error) {
	var none experience.FeedbackResponse

	character, err := s.resolveCharacter(req.Character)
	if err != nil {
		slog.Warn("feedback audio failed", "error", err)
		return none, nil
	}

	text := req.QuestionData.WrongResponse
	if req.IsCorrect {
		text = req.QuestionData.CorrectResponse
	}
	if strings.TrimSpace(text) == "" || s.speech == nil {
		return none, nil
	}

	audio, err := s.speech.Synthesize(ctx, text, character.Voice)
	s.metrics.RecordClip(ctx, "feedback", err)
	if ctx.Err() != nil {
		return none, ctx.Err()
	}
	if err != nil {
		slog.Warn("feedback audio failed", "character", character.ID, "error", err)
		return none, nil
	}
	encoded := tts.EncodeAudio(audio)
	if encoded == "" {
		return none, nil
	}
	return experience.FeedbackResponse{Audio: &encoded}, nil
}
